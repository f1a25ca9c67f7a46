package calibration

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cobotix/go-gazebot/pkg/gaze"
	"github.com/cobotix/go-gazebot/pkg/sim"
)

// fakeDisplay records marker presentations.
type fakeDisplay struct {
	mu     sync.Mutex
	shown  []int
	hidden bool
}

func (d *fakeDisplay) ShowMarker(target sim.Target, index, total int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, target.ID)
	d.hidden = false
}

func (d *fakeDisplay) HideMarker() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hidden = true
}

// followingGaze simulates a user whose raw gaze tracks the shown marker with
// a constant offset and a per-call jitter so samples are distinct.
type followingGaze struct {
	display *fakeDisplay
	targets map[int]gaze.Point
	offset  float64
	calls   int
}

func (g *followingGaze) Current() (gaze.Point, bool) {
	g.display.mu.Lock()
	defer g.display.mu.Unlock()
	if len(g.display.shown) == 0 || g.display.hidden {
		return gaze.Point{}, false
	}
	truth := g.targets[g.display.shown[len(g.display.shown)-1]]
	g.calls++
	jitter := float64(g.calls%7) * 1e-4
	return gaze.Point{X: truth.X + g.offset + jitter, Y: truth.Y + g.offset - jitter}, true
}

func fastSessionConfig() SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.MarkerLeadIn = time.Millisecond
	cfg.SampleInterval = time.Millisecond
	cfg.SamplesPerTarget = 10
	cfg.MaxPerTarget = time.Second
	return cfg
}

func sessionTargets() []sim.Target {
	return []sim.Target{
		{ID: 0, Name: "/target[0]", Screen: gaze.Point{X: 0.1, Y: 0.1}},
		{ID: 1, Name: "/target[1]", Screen: gaze.Point{X: 0.9, Y: 0.1}},
		{ID: 2, Name: "/target[2]", Screen: gaze.Point{X: 0.1, Y: 0.9}},
		{ID: 3, Name: "/target[3]", Screen: gaze.Point{X: 0.9, Y: 0.9}},
		{ID: 4, Name: "/target[4]", Screen: gaze.Point{X: 0.5, Y: 0.5}},
	}
}

func TestSession_FullRunFitsModel(t *testing.T) {
	targets := sessionTargets()
	display := &fakeDisplay{}
	gazeSrc := &followingGaze{display: display, offset: 0.05, targets: map[int]gaze.Point{}}
	for _, tgt := range targets {
		gazeSrc.targets[tgt.ID] = tgt.Screen
	}

	s := NewSession(fastSessionConfig(), display, gazeSrc)
	model := NewModel(2)

	if err := s.Run(context.Background(), targets, model); err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if !model.Fitted() {
		t.Fatal("Expected a fitted model after a full session")
	}
	if s.State() != StateIdle {
		t.Errorf("Expected session back in idle, got %v", s.State())
	}
	if len(display.shown) != len(targets) {
		t.Errorf("Expected %d markers shown, got %d", len(targets), len(display.shown))
	}

	// The fitted model should undo most of the constant offset
	corrected := model.Apply(gaze.Point{X: 0.55, Y: 0.55})
	if corrected.DistanceTo(gaze.Point{X: 0.5, Y: 0.5}) > 0.02 {
		t.Errorf("Expected offset mostly corrected, got %v", corrected)
	}
}

func TestSession_PresentsCornersFirst(t *testing.T) {
	targets := []sim.Target{
		{ID: 0, Screen: gaze.Point{X: 0.5, Y: 0.5}},  // center
		{ID: 1, Screen: gaze.Point{X: 0.05, Y: 0.1}}, // top-left
		{ID: 2, Screen: gaze.Point{X: 0.95, Y: 0.1}}, // top-right
	}
	ordered := orderForCalibration(targets)
	if ordered[0].ID != 1 || ordered[1].ID != 2 {
		t.Errorf("Expected corner targets first, got order %v %v %v",
			ordered[0].ID, ordered[1].ID, ordered[2].ID)
	}
}

func TestSession_NoGazeSignalFailsWithoutFitting(t *testing.T) {
	targets := sessionTargets()
	display := &fakeDisplay{}
	cfg := fastSessionConfig()
	cfg.MaxPerTarget = 20 * time.Millisecond

	s := NewSession(cfg, display, noSignal{})
	model := NewModel(2)

	if err := s.Run(context.Background(), targets, model); err == nil {
		t.Fatal("Expected session failure when no gaze signal is available")
	}
	if model.Fitted() {
		t.Error("Expected model untouched by a failed session")
	}
}

type noSignal struct{}

func (noSignal) Current() (gaze.Point, bool) { return gaze.Point{}, false }

func TestSession_CancelDiscardsDataset(t *testing.T) {
	targets := sessionTargets()
	display := &fakeDisplay{}
	gazeSrc := &followingGaze{display: display, offset: 0.05, targets: map[int]gaze.Point{}}
	for _, tgt := range targets {
		gazeSrc.targets[tgt.ID] = tgt.Screen
	}

	cfg := fastSessionConfig()
	cfg.MarkerLeadIn = 50 * time.Millisecond

	s := NewSession(cfg, display, gazeSrc)
	model := NewModel(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx, targets, model); err == nil {
		t.Fatal("Expected cancellation error")
	}
	if model.Fitted() {
		t.Error("Expected model untouched by a cancelled session")
	}
	if s.State() != StateIdle {
		t.Errorf("Expected session back in idle after cancel, got %v", s.State())
	}
}

func TestSession_EmptySceneFails(t *testing.T) {
	s := NewSession(fastSessionConfig(), &fakeDisplay{}, noSignal{})
	if err := s.Run(context.Background(), nil, NewModel(2)); err == nil {
		t.Error("Expected error for a scene without targets")
	}
}

func TestBurstMeanIsCentroid(t *testing.T) {
	target := sim.Target{ID: 4, Screen: gaze.Point{X: 0.5, Y: 0.5}}
	burst := Dataset{
		{Raw: gaze.Point{X: 0.40, Y: 0.60}, TargetID: 4, Truth: target.Screen},
		{Raw: gaze.Point{X: 0.50, Y: 0.50}, TargetID: 4, Truth: target.Screen},
		{Raw: gaze.Point{X: 0.60, Y: 0.40}, TargetID: 4, Truth: target.Screen},
	}

	mean := burstMean(burst, target)
	if math.Abs(mean.Raw.X-0.5) > 1e-12 || math.Abs(mean.Raw.Y-0.5) > 1e-12 {
		t.Errorf("burstMean raw = (%v, %v), want (0.5, 0.5)", mean.Raw.X, mean.Raw.Y)
	}
	if mean.TargetID != 4 || mean.Truth != target.Screen {
		t.Errorf("burstMean kept target = %d truth = %+v", mean.TargetID, mean.Truth)
	}
}
