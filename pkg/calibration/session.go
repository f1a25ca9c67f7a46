package calibration

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cobotix/go-gazebot/internal/log"
	"github.com/cobotix/go-gazebot/pkg/gaze"
	"github.com/cobotix/go-gazebot/pkg/sim"
)

// State is the calibration session state machine position.
type State int

const (
	StateIdle State = iota
	StateAwaitingTargets
	StatePresentingMarker
	StateCollecting
	StateFitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingTargets:
		return "awaiting_targets"
	case StatePresentingMarker:
		return "presenting_marker"
	case StateCollecting:
		return "collecting"
	case StateFitting:
		return "fitting"
	default:
		return "unknown"
	}
}

// MarkerDisplay presents the calibration marker to the user. Implementations
// render an overlay; tests use a no-op.
type MarkerDisplay interface {
	ShowMarker(target sim.Target, index, total int)
	HideMarker()
}

// GazeProvider supplies the latest conditioned gaze point.
// ok=false means no signal right now.
type GazeProvider interface {
	Current() (gaze.Point, bool)
}

// SessionConfig holds the tunable parameters for a guided session.
type SessionConfig struct {
	MarkerLeadIn     time.Duration // marker shown before sampling starts
	SamplesPerTarget int           // burst size collected per marker
	SampleInterval   time.Duration // spacing between samples in a burst
	MaxPerTarget     time.Duration // give up on a marker after this long
	MinBurstFraction float64       // burst kept only if this share collected
	MinMarkersForFit int           // markers that must succeed before fitting
}

// DefaultSessionConfig returns the recommended session parameters.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MarkerLeadIn:     1 * time.Second,
		SamplesPerTarget: 20,
		SampleInterval:   100 * time.Millisecond,
		MaxPerTarget:     15 * time.Second,
		MinBurstFraction: 0.7,
		MinMarkersForFit: 3,
	}
}

// Session orchestrates the guided calibration flow: for each target in turn
// it presents a marker, collects a burst of conditioned gaze samples, and
// finally fits the model. Cancellation is honored at state boundaries only;
// a marker's burst is either fully collected or discarded whole, and a
// cancelled or failed session never mutates the model.
type Session struct {
	id      string
	config  SessionConfig
	display MarkerDisplay
	gazeSrc GazeProvider

	state   State
	dataset Dataset
}

// NewSession creates a calibration session.
func NewSession(config SessionConfig, display MarkerDisplay, gazeSrc GazeProvider) *Session {
	return &Session{
		id:      uuid.NewString(),
		config:  config,
		display: display,
		gazeSrc: gazeSrc,
		state:   StateIdle,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state machine position.
func (s *Session) State() State { return s.state }

// Run executes the full session against the given targets and fits the model
// on success. The model is untouched unless the fit succeeds. Targets are
// presented corners-first then center, which anchors the fit at the screen
// extremes before filling in the middle.
func (s *Session) Run(ctx context.Context, targets []sim.Target, model *Model) error {
	defer func() {
		s.state = StateIdle
		s.dataset = nil
		s.display.HideMarker()
	}()

	s.state = StateAwaitingTargets
	if len(targets) == 0 {
		return fmt.Errorf("calibration: no targets in scene")
	}
	sequence := orderForCalibration(targets)
	s.dataset = s.dataset[:0]

	logger := log.With("session", s.id)
	logger.Info("calibration session started", "targets", len(sequence))

	succeeded := 0
	for i, target := range sequence {
		if err := ctx.Err(); err != nil {
			logger.Info("calibration cancelled", "state", s.state.String())
			return err
		}

		s.state = StatePresentingMarker
		s.display.ShowMarker(target, i+1, len(sequence))
		if err := sleep(ctx, s.config.MarkerLeadIn); err != nil {
			return err
		}

		s.state = StateCollecting
		burst, err := s.collectBurst(ctx, target)
		if err != nil {
			return err
		}

		need := int(math.Ceil(float64(s.config.SamplesPerTarget) * s.config.MinBurstFraction))
		if len(burst) < need {
			logger.Warn("discarding marker burst",
				"target", target.Name, "collected", len(burst), "need", need)
			continue
		}
		s.dataset = append(s.dataset, burst...)
		s.dataset = append(s.dataset, burstMean(burst, target))
		succeeded++
		logger.Info("marker calibrated", "target", target.Name, "samples", len(burst))
	}
	s.display.HideMarker()

	if succeeded < s.config.MinMarkersForFit {
		return fmt.Errorf("calibration: only %d of %d markers collected enough samples",
			succeeded, len(sequence))
	}

	s.state = StateFitting
	if err := model.Fit(s.dataset); err != nil {
		return fmt.Errorf("calibration fit: %w", err)
	}
	logger.Info("calibration complete",
		"samples", len(s.dataset), "residual", model.MeanResidual(s.dataset))
	return nil
}

// collectBurst gathers up to SamplesPerTarget conditioned points while the
// marker for target is displayed. Times out rather than blocking forever
// when the gaze signal is absent.
func (s *Session) collectBurst(ctx context.Context, target sim.Target) (Dataset, error) {
	burst := make(Dataset, 0, s.config.SamplesPerTarget)
	deadline := time.Now().Add(s.config.MaxPerTarget)

	for len(burst) < s.config.SamplesPerTarget {
		if time.Now().After(deadline) {
			break
		}
		if err := sleep(ctx, s.config.SampleInterval); err != nil {
			// Cancelled mid-burst: the whole burst is dropped with it.
			return nil, err
		}
		p, ok := s.gazeSrc.Current()
		if !ok {
			continue
		}
		burst = append(burst, Sample{Raw: p, TargetID: target.ID, Truth: target.Screen})
	}
	return burst, nil
}

// burstMean folds an accepted burst into one averaged sample. The centroid
// anchors the fit against per-sample jitter.
func burstMean(burst Dataset, target sim.Target) Sample {
	var mx, my float64
	for _, s := range burst {
		mx += s.Raw.X
		my += s.Raw.Y
	}
	n := float64(len(burst))
	return Sample{
		Raw:      gaze.Point{X: mx / n, Y: my / n},
		TargetID: target.ID,
		Truth:    target.Screen,
	}
}

// orderForCalibration sorts targets corners-first then center, with any
// remaining targets in id order.
func orderForCalibration(targets []sim.Target) []sim.Target {
	corners := []gaze.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0.5, Y: 0.5}}

	remaining := append([]sim.Target(nil), targets...)
	ordered := make([]sim.Target, 0, len(targets))
	for _, c := range corners {
		if len(remaining) == 0 {
			break
		}
		best := 0
		for i := 1; i < len(remaining); i++ {
			if remaining[i].Screen.DistanceTo(c) < remaining[best].Screen.DistanceTo(c) {
				best = i
			}
		}
		ordered = append(ordered, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].ID < remaining[j].ID })
	return append(ordered, remaining...)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
