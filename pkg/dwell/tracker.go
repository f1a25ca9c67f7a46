// Package dwell accumulates per-target gaze duration and recency from the
// conditioned, calibrated gaze stream.
package dwell

import (
	"sort"
	"time"

	"github.com/cobotix/go-gazebot/pkg/gaze"
	"github.com/cobotix/go-gazebot/pkg/sim"
)

// DwellBucket is a coarse, finite classification of accumulated duration.
type DwellBucket int

const (
	BucketNone DwellBucket = iota
	BucketShort
	BucketFirm
	BucketLong
)

// RecencyBucket classifies how recently a target was last gazed at.
type RecencyBucket int

const (
	RecencyActive RecencyBucket = iota
	RecencyRecent
	RecencyStale
	RecencyNone
)

type targetState struct {
	duration time.Duration
	lastSeen time.Time
}

// Tracker maintains per-target dwell state. At most one target accumulates
// per tick: the nearest target to the corrected gaze point within the
// proximity radius. Targets that stop being hit decay back to zero after a
// grace period so a recently-left target retains partial credit.
type Tracker struct {
	config Config
	states map[int]*targetState
}

// NewTracker creates a dwell tracker.
func NewTracker(config Config) *Tracker {
	return &Tracker{
		config: config,
		states: make(map[int]*targetState),
	}
}

// Update advances the tracker by dt. ok=false means no gaze signal this
// tick; no target accumulates but decay still runs.
// Returns the id of the target that accumulated, or -1.
func (t *Tracker) Update(p gaze.Point, ok bool, targets []sim.Target, dt time.Duration, now time.Time) int {
	hit := -1
	if ok {
		hit = nearestWithin(p, targets, t.config.ProximityRadius)
	}

	if hit >= 0 {
		st, exists := t.states[hit]
		if !exists {
			st = &targetState{}
			t.states[hit] = st
		}
		st.duration += dt
		st.lastSeen = now
	}

	// Decay everyone else once past the grace period.
	for id, st := range t.states {
		if id == hit {
			continue
		}
		if now.Sub(st.lastSeen) <= t.config.GracePeriod {
			continue
		}
		st.duration -= time.Duration(float64(dt) * t.config.DecayRate)
		if st.duration <= 0 {
			delete(t.states, id)
		}
	}

	return hit
}

// Duration returns the accumulated dwell for a target.
func (t *Tracker) Duration(id int) time.Duration {
	if st, ok := t.states[id]; ok {
		return st.duration
	}
	return 0
}

// LastSeen returns when the target last accumulated, false if it never has.
func (t *Tracker) LastSeen(id int) (time.Time, bool) {
	if st, ok := t.states[id]; ok {
		return st.lastSeen, true
	}
	return time.Time{}, false
}

// DwellBucket classifies a target's accumulated duration.
func (t *Tracker) DwellBucket(id int) DwellBucket {
	d := t.Duration(id)
	switch {
	case d < t.config.ShortDwell:
		return BucketNone
	case d < t.config.FirmDwell:
		return BucketShort
	case d < t.config.LongDwell:
		return BucketFirm
	default:
		return BucketLong
	}
}

// RecencyBucket classifies how recently a target was gazed at.
func (t *Tracker) RecencyBucket(id int, now time.Time) RecencyBucket {
	st, ok := t.states[id]
	if !ok {
		return RecencyNone
	}
	since := now.Sub(st.lastSeen)
	switch {
	case since <= t.config.ActiveWindow:
		return RecencyActive
	case since <= t.config.RecentWindow:
		return RecencyRecent
	case since <= t.config.StaleWindow:
		return RecencyStale
	default:
		return RecencyNone
	}
}

// Dominant returns the target with the largest accumulated duration and
// whether any target currently holds dwell at all.
func (t *Tracker) Dominant() (int, bool) {
	best := -1
	var bestDur time.Duration
	for id, st := range t.states {
		// Lowest id wins ties so the result is stable across map order.
		if st.duration > bestDur || (st.duration == bestDur && best >= 0 && id < best) {
			best = id
			bestDur = st.duration
		}
	}
	return best, best >= 0
}

// Qualified returns the ids of targets whose dwell meets the minimum bucket,
// sorted ascending. These are the selection candidates for the fusion policy.
func (t *Tracker) Qualified(min DwellBucket) []int {
	var ids []int
	for id := range t.states {
		if t.DwellBucket(id) >= min {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Reset clears all dwell state.
func (t *Tracker) Reset() {
	t.states = make(map[int]*targetState)
}

func nearestWithin(p gaze.Point, targets []sim.Target, radius float64) int {
	best := -1
	bestDist := radius
	for _, tgt := range targets {
		d := p.DistanceTo(tgt.Screen)
		if d < bestDist || (d == bestDist && best >= 0 && tgt.ID < best) {
			best = tgt.ID
			bestDist = d
		}
	}
	return best
}
