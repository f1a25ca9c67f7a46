package gaze

import (
	"time"
)

type historyEntry struct {
	point Point
	at    time.Time
}

// Conditioner smooths the raw gaze stream and rejects glitches. It owns a
// small rolling history and nothing else; callers treat it as stateless
// beyond that buffer.
type Conditioner struct {
	config Config

	history  []historyEntry // newest last
	hasValue bool
	current  Point
	lastTime time.Time
	rejects  int // consecutive jump rejections
}

// NewConditioner creates a conditioner with the given configuration.
func NewConditioner(config Config) *Conditioner {
	if config.WindowSize < 1 {
		config.WindowSize = 1
	}
	return &Conditioner{
		config:  config,
		history: make([]historyEntry, 0, config.WindowSize),
	}
}

// Condition processes one raw sample and returns the conditioned gaze point.
// The second return value is false while no valid sample has ever been seen:
// downstream components must treat that as "no target gazed this tick".
//
// A sample is rejected (the previous conditioned value is kept) when its
// confidence is below the threshold or when it jumps further from the last
// conditioned point than recent velocity makes plausible.
func (c *Conditioner) Condition(s Sample) (Point, bool) {
	if s.Confidence < c.config.MinConfidence {
		return c.current, c.hasValue
	}

	p := s.Point()

	if c.hasValue {
		dt := s.Timestamp.Sub(c.lastTime).Seconds()
		if dt < 0 {
			// Out-of-order sample; keep the previous value.
			return c.current, true
		}
		bound := c.config.MinJump + c.config.VelocityHeadroom*c.recentVelocity()*dt
		if p.DistanceTo(c.current) > bound {
			c.rejects++
			if c.config.MaxConsecutiveRejects <= 0 || c.rejects < c.config.MaxConsecutiveRejects {
				return c.current, true
			}
			// Enough agreement that this is a real saccade: re-seed there.
			c.history = c.history[:0]
			c.rejects = 0
			c.push(historyEntry{point: p, at: s.Timestamp})
			c.current = p
			c.lastTime = s.Timestamp
			return p, true
		}
		c.rejects = 0
		p = Point{
			X: c.config.Smoothing*p.X + (1-c.config.Smoothing)*c.current.X,
			Y: c.config.Smoothing*p.Y + (1-c.config.Smoothing)*c.current.Y,
		}
	}

	c.push(historyEntry{point: p, at: s.Timestamp})
	c.current = p
	c.lastTime = s.Timestamp
	c.hasValue = true
	return p, true
}

// Current returns the latest conditioned point, false if none exists yet.
func (c *Conditioner) Current() (Point, bool) {
	return c.current, c.hasValue
}

// Reset clears the rolling history, returning to the "no signal" state.
func (c *Conditioner) Reset() {
	c.history = c.history[:0]
	c.hasValue = false
	c.current = Point{}
	c.lastTime = time.Time{}
	c.rejects = 0
}

// recentVelocity estimates gaze speed (normalized units/sec) over the
// rolling window. Returns 0 with fewer than two history entries.
func (c *Conditioner) recentVelocity() float64 {
	if len(c.history) < 2 {
		return 0
	}
	first := c.history[0]
	last := c.history[len(c.history)-1]
	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	var dist float64
	for i := 1; i < len(c.history); i++ {
		dist += c.history[i].point.DistanceTo(c.history[i-1].point)
	}
	return dist / elapsed
}

func (c *Conditioner) push(e historyEntry) {
	if len(c.history) == c.config.WindowSize {
		copy(c.history, c.history[1:])
		c.history = c.history[:len(c.history)-1]
	}
	c.history = append(c.history, e)
}
