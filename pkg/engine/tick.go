// Package engine wires the gaze conditioner, calibration model, dwell
// tracker and fusion policy into one tick function, and provides the loop
// driver that feeds it from the system's collaborators.
//
// The pipeline order inside a tick is fixed: conditioning, then calibration,
// then dwell update, then fusion selection. No component ever observes a
// partially-updated tick.
package engine

import (
	"math"
	"time"

	"github.com/cobotix/go-gazebot/pkg/calibration"
	"github.com/cobotix/go-gazebot/pkg/dwell"
	"github.com/cobotix/go-gazebot/pkg/fusion"
	"github.com/cobotix/go-gazebot/pkg/gaze"
	"github.com/cobotix/go-gazebot/pkg/input"
	"github.com/cobotix/go-gazebot/pkg/sim"
)

// TickInput carries everything the core needs for one control cycle.
type TickInput struct {
	Sample     gaze.Sample // raw gaze estimate for this frame
	HaveSample bool        // false when the vision collaborator produced nothing
	Direction  input.Direction
	DT         time.Duration
	Now        time.Time
}

// TickOutput is the decision and the observable state of one cycle.
type TickOutput struct {
	Action    fusion.Action
	State     fusion.State
	Corrected gaze.Point // calibrated gaze point, valid when GazeOK
	GazeOK    bool
	Hit       int // target that accumulated dwell this tick, -1 for none
	Reward    float64
}

// Core is the pure fusion/calibration pipeline. It owns all mutable learning
// state (single owner, no locking) and is driven by exactly one caller per
// tick.
type Core struct {
	config Config

	conditioner *gaze.Conditioner
	model       *calibration.Model
	tracker     *dwell.Tracker
	agent       *fusion.Agent

	targets []sim.Target

	// Previous transition, pending its TD update.
	havePrev   bool
	prevState  fusion.State
	prevAction fusion.Action
	prevReward float64
}

// NewCore assembles the pipeline. The components are owned by the core from
// here on.
func NewCore(config Config, conditioner *gaze.Conditioner, model *calibration.Model,
	tracker *dwell.Tracker, agent *fusion.Agent) *Core {
	return &Core{
		config:      config,
		conditioner: conditioner,
		model:       model,
		tracker:     tracker,
		agent:       agent,
	}
}

// SetTargets installs the scene targets queried from the simulation registry.
func (c *Core) SetTargets(targets []sim.Target) {
	c.targets = targets
}

// Targets returns the current scene targets.
func (c *Core) Targets() []sim.Target { return c.targets }

// Model returns the calibration model (for sessions and persistence).
func (c *Core) Model() *calibration.Model { return c.model }

// Agent returns the fusion policy (for persistence and inspection).
func (c *Core) Agent() *fusion.Agent { return c.agent }

// Conditioner returns the gaze conditioner (shared with calibration sessions).
func (c *Core) Conditioner() *gaze.Conditioner { return c.conditioner }

// Tick runs one control cycle: condition the raw sample, apply the
// calibration correction, update dwell, settle the previous transition's
// value update, and select this tick's action.
func (c *Core) Tick(in TickInput) TickOutput {
	var corrected gaze.Point
	gazeOK := false
	if in.HaveSample {
		if p, ok := c.conditioner.Condition(in.Sample); ok {
			corrected = c.model.Apply(p)
			gazeOK = true
		}
	}
	// A missing frame is "no signal": dwell decays, nothing accumulates.

	hit := c.tracker.Update(corrected, gazeOK, c.targets, in.DT, in.Now)

	state := c.observeState(in.Direction, in.Now)

	if c.havePrev {
		c.agent.Update(c.prevState, c.prevAction, c.prevReward, state)
	}

	candidates := c.tracker.Qualified(c.config.MinSelectBucket)
	action := c.agent.Select(state, candidates)
	reward := c.scoreAction(state, action)

	c.prevState = state
	c.prevAction = action
	c.prevReward = reward
	c.havePrev = true

	return TickOutput{
		Action:    action,
		State:     state,
		Corrected: corrected,
		GazeOK:    gazeOK,
		Hit:       hit,
		Reward:    reward,
	}
}

// ResetLearning drops the policy table and dwell state, as on an explicit
// user reset.
func (c *Core) ResetLearning() {
	c.agent.Reset()
	c.tracker.Reset()
	c.havePrev = false
}

// observeState discretizes the current situation for the policy.
func (c *Core) observeState(dir input.Direction, now time.Time) fusion.State {
	dominant, ok := c.tracker.Dominant()
	if !ok {
		return fusion.State{
			Dominant:  -1,
			Dwell:     dwell.BucketNone,
			Direction: dir,
			Recency:   dwell.RecencyNone,
		}
	}
	return fusion.State{
		Dominant:  dominant,
		Dwell:     c.tracker.DwellBucket(dominant),
		Direction: dir,
		Recency:   c.tracker.RecencyBucket(dominant, now),
	}
}

// scoreAction applies the reward schedule to the chosen action.
func (c *Core) scoreAction(state fusion.State, action fusion.Action) float64 {
	r := c.config.Reward
	highDwell := state.Dominant >= 0 && state.Dwell >= r.HighDwell
	pointing := state.Dominant >= 0 && state.Direction != input.Neutral &&
		c.joystickAgrees(state.Direction, state.Dominant)

	if !action.Select {
		if highDwell && pointing {
			return r.MissedSelect
		}
		return 0
	}
	if action.TargetID == state.Dominant && highDwell && pointing {
		return r.Agreement
	}
	return r.Disagreement
}

// joystickAgrees reports whether the joystick direction points at the target
// from the screen center, allowing one 45-degree step of slack.
func (c *Core) joystickAgrees(dir input.Direction, targetID int) bool {
	for _, t := range c.targets {
		if t.ID != targetID {
			continue
		}
		want := directionToward(t.Screen)
		if want == input.Neutral {
			// Target sits at the center; any direction counts.
			return true
		}
		return angularDistance(dir, want) <= 1
	}
	return false
}

// directionToward maps a screen position to the compass direction from the
// screen center, Neutral when the target is at the center itself.
func directionToward(p gaze.Point) input.Direction {
	dx := p.X - 0.5
	dy := p.Y - 0.5
	if math.Abs(dx) < 0.05 && math.Abs(dy) < 0.05 {
		return input.Neutral
	}
	// Octant from the angle; screen y grows downward.
	angle := math.Atan2(dy, dx)
	octant := int(math.Round(angle/(math.Pi/4))) & 7
	order := []input.Direction{
		input.Right, input.DownRight, input.Down, input.DownLeft,
		input.Left, input.UpLeft, input.Up, input.UpRight,
	}
	return order[octant]
}

// compassIndex orders the eight directions clockwise from Up.
var compassIndex = map[input.Direction]int{
	input.Up:        0,
	input.UpRight:   1,
	input.Right:     2,
	input.DownRight: 3,
	input.Down:      4,
	input.DownLeft:  5,
	input.UpLeft:    7,
	input.Left:      6,
}

// angularDistance counts 45-degree steps between two compass directions.
func angularDistance(a, b input.Direction) int {
	ai, aok := compassIndex[a]
	bi, bok := compassIndex[b]
	if !aok || !bok {
		return 8
	}
	d := ai - bi
	if d < 0 {
		d = -d
	}
	if d > 4 {
		d = 8 - d
	}
	return d
}
