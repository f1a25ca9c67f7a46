package engine

import (
	"testing"
	"time"

	"github.com/cobotix/go-gazebot/pkg/calibration"
	"github.com/cobotix/go-gazebot/pkg/dwell"
	"github.com/cobotix/go-gazebot/pkg/fusion"
	"github.com/cobotix/go-gazebot/pkg/gaze"
	"github.com/cobotix/go-gazebot/pkg/input"
	"github.com/cobotix/go-gazebot/pkg/sim"
)

const tick = 33 * time.Millisecond

func testCore() *Core {
	fusionCfg := fusion.DefaultConfig()
	fusionCfg.Epsilon = 0 // deterministic for tests

	core := NewCore(
		DefaultConfig(),
		gaze.NewConditioner(gaze.DefaultConfig()),
		calibration.NewModel(calibration.DefaultDegree),
		dwell.NewTracker(dwell.DefaultConfig()),
		fusion.NewAgent(fusionCfg, nil),
	)
	core.SetTargets([]sim.Target{
		{ID: 0, Name: "/target[0]", Screen: gaze.Point{X: 0.15, Y: 0.15}},
		{ID: 1, Name: "/target[1]", Screen: gaze.Point{X: 0.85, Y: 0.15}},
		{ID: 2, Name: "/target[2]", Screen: gaze.Point{X: 0.85, Y: 0.85}},
		{ID: 3, Name: "/target[3]", Screen: gaze.Point{X: 0.15, Y: 0.85}},
	})
	return core
}

// gazeAt drives the core for steps ticks with the gaze fixed on a point.
func gazeAt(c *Core, p gaze.Point, dir input.Direction, steps int, start time.Time) (TickOutput, time.Time) {
	var out TickOutput
	now := start
	for i := 0; i < steps; i++ {
		now = now.Add(tick)
		out = c.Tick(TickInput{
			Sample:     gaze.Sample{X: p.X, Y: p.Y, Confidence: 0.9, Timestamp: now},
			HaveSample: true,
			Direction:  dir,
			DT:         tick,
			Now:        now,
		})
	}
	return out, now
}

func TestCore_DwellPlusJoystickSelectsTarget(t *testing.T) {
	core := testCore()
	now := time.Now()

	// 1.2s of dwell on target 2 (bottom-right) with the joystick agreeing.
	steps := int((1200*time.Millisecond)/tick) + 2
	out, _ := gazeAt(core, gaze.Point{X: 0.85, Y: 0.85}, input.DownRight, steps, now)

	if out.Action != fusion.SelectTarget(2) {
		t.Errorf("Expected SelectTarget(2), got %v", out.Action)
	}
	if out.State.Dominant != 2 {
		t.Errorf("Expected target 2 dominant, got %d", out.State.Dominant)
	}
	if out.Reward <= 0 {
		t.Errorf("Expected positive reward for an agreeing selection, got %v", out.Reward)
	}
}

func TestCore_RapidAlternationYieldsNoOp(t *testing.T) {
	fusionCfg := fusion.DefaultConfig()
	fusionCfg.Epsilon = 0

	// A wide-open jump bound so every alternation is accepted: the EWMA then
	// settles on the midpoint between the two corners, which is outside the
	// proximity radius of every target, so no dwell ever firms up.
	gazeCfg := gaze.DefaultConfig()
	gazeCfg.MinJump = 2.0

	core := NewCore(
		DefaultConfig(),
		gaze.NewConditioner(gazeCfg),
		calibration.NewModel(calibration.DefaultDegree),
		dwell.NewTracker(dwell.DefaultConfig()),
		fusion.NewAgent(fusionCfg, nil),
	)
	core.SetTargets(testCore().Targets())
	now := time.Now()

	points := []gaze.Point{{X: 0.85, Y: 0.15}, {X: 0.15, Y: 0.85}}
	var out TickOutput
	for i := 0; i < 90; i++ {
		now = now.Add(tick)
		p := points[i%2]
		out = core.Tick(TickInput{
			Sample:     gaze.Sample{X: p.X, Y: p.Y, Confidence: 0.9, Timestamp: now},
			HaveSample: true,
			Direction:  input.UpRight,
			DT:         tick,
			Now:        now,
		})
	}

	if out.Action != fusion.NoOp {
		t.Errorf("Expected NoOp under rapid alternation, got %v", out.Action)
	}
}

func TestCore_NeutralJoystickNeverSelects(t *testing.T) {
	core := testCore()
	out, _ := gazeAt(core, gaze.Point{X: 0.15, Y: 0.15}, input.Neutral, 60, time.Now())

	if out.Action != fusion.NoOp {
		t.Errorf("Expected NoOp with neutral joystick, got %v", out.Action)
	}
}

func TestCore_NoSignalMeansNoAccrual(t *testing.T) {
	core := testCore()
	now := time.Now()

	var out TickOutput
	for i := 0; i < 30; i++ {
		now = now.Add(tick)
		out = core.Tick(TickInput{HaveSample: false, Direction: input.Up, DT: tick, Now: now})
	}

	if out.GazeOK {
		t.Error("Expected no gaze signal")
	}
	if out.Hit != -1 {
		t.Errorf("Expected no dwell hit, got %d", out.Hit)
	}
	if out.Action != fusion.NoOp {
		t.Errorf("Expected NoOp without any signal, got %v", out.Action)
	}
}

func TestCore_CalibrationCorrectionFlowsThroughPipeline(t *testing.T) {
	core := testCore()

	// Fit a model that removes a constant +0.1 offset.
	var data calibration.Dataset
	for i, truth := range []gaze.Point{
		{X: 0.15, Y: 0.15}, {X: 0.85, Y: 0.15}, {X: 0.85, Y: 0.85}, {X: 0.15, Y: 0.85}, {X: 0.5, Y: 0.5},
	} {
		for j := 0; j < 10; j++ {
			jit := float64(j) * 1e-4
			data = append(data, calibration.Sample{
				Raw:   gaze.Point{X: truth.X + 0.1 + jit, Y: truth.Y + 0.1 - jit},
				Truth: truth, TargetID: i,
			})
		}
	}
	if err := core.Model().Fit(data); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// Raw gaze is offset from target 0; the correction should land it there.
	out, _ := gazeAt(core, gaze.Point{X: 0.25, Y: 0.25}, input.Neutral, 30, time.Now())
	if !out.GazeOK {
		t.Fatal("Expected a gaze signal")
	}
	if out.Corrected.DistanceTo(gaze.Point{X: 0.15, Y: 0.15}) > 0.03 {
		t.Errorf("Expected corrected point near target 0, got %v", out.Corrected)
	}
	if out.Hit != 0 {
		t.Errorf("Expected dwell accrual on target 0, got %d", out.Hit)
	}
}

func TestCore_LearningShiftsPreferenceAcrossTicks(t *testing.T) {
	core := testCore()
	now := time.Now()

	// Repeated agreement on target 2 drives its value up tick over tick.
	steps := int((1500 * time.Millisecond) / tick)
	_, now = gazeAt(core, gaze.Point{X: 0.85, Y: 0.85}, input.DownRight, steps, now)

	s := fusion.State{
		Dominant: 2, Dwell: dwell.BucketLong,
		Direction: input.DownRight, Recency: dwell.RecencyActive,
	}
	if v := core.Agent().Table().Get(s, fusion.SelectTarget(2)); v <= 0 {
		t.Errorf("Expected positive learned value for the agreeing selection, got %v", v)
	}
}

func TestCore_ResetLearningClearsState(t *testing.T) {
	core := testCore()
	steps := int((1500 * time.Millisecond) / tick)
	gazeAt(core, gaze.Point{X: 0.85, Y: 0.85}, input.DownRight, steps, time.Now())

	core.ResetLearning()
	if core.Agent().Table().Len() != 0 {
		t.Error("Expected empty table after reset")
	}
	if _, ok := core.Conditioner().Current(); !ok {
		// The conditioner is deliberately untouched by a learning reset.
		t.Error("Expected conditioner history to survive a learning reset")
	}
}

func TestDirectionToward(t *testing.T) {
	tests := []struct {
		p    gaze.Point
		want input.Direction
	}{
		{gaze.Point{X: 0.9, Y: 0.5}, input.Right},
		{gaze.Point{X: 0.1, Y: 0.5}, input.Left},
		{gaze.Point{X: 0.5, Y: 0.1}, input.Up},
		{gaze.Point{X: 0.5, Y: 0.9}, input.Down},
		{gaze.Point{X: 0.9, Y: 0.9}, input.DownRight},
		{gaze.Point{X: 0.1, Y: 0.1}, input.UpLeft},
		{gaze.Point{X: 0.5, Y: 0.5}, input.Neutral},
	}
	for _, tt := range tests {
		if got := directionToward(tt.p); got != tt.want {
			t.Errorf("directionToward(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
