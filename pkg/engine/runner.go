package engine

import (
	"context"
	"sync"
	"time"

	"github.com/cobotix/go-gazebot/internal/log"
	"github.com/cobotix/go-gazebot/pkg/calibration"
	"github.com/cobotix/go-gazebot/pkg/fusion"
	"github.com/cobotix/go-gazebot/pkg/gaze"
	"github.com/cobotix/go-gazebot/pkg/input"
	"github.com/cobotix/go-gazebot/pkg/sim"
)

// GazeSource is implemented by the vision collaborator adapter. Poll must
// not block; ok=false means no frame was available this tick.
type GazeSource interface {
	Poll() (gaze.Sample, bool)
}

// Mover issues confirmed selections to the simulation environment.
type Mover interface {
	MoveToTarget(ctx context.Context, target sim.Target) error
}

// Registry supplies the scene targets.
type Registry interface {
	ListTargets(ctx context.Context) ([]sim.Target, error)
}

// Telemetry receives one record per tick. Implementations must be cheap or
// buffer internally; the loop will not wait for them.
type Telemetry struct {
	Tick       uint64        `json:"tick"`
	Action     string        `json:"action"`
	State      fusion.State  `json:"state"`
	Corrected  gaze.Point    `json:"corrected"`
	GazeOK     bool          `json:"gaze_ok"`
	Hit        int           `json:"hit"`
	Reward     float64       `json:"reward"`
	Epsilon    float64       `json:"epsilon"`
	Calibrated bool          `json:"calibrated"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Publisher receives tick telemetry (dashboard, MQTT).
type Publisher interface {
	Publish(t Telemetry)
}

// Runner drives the core at a fixed cadence against the system's
// collaborators, and services user commands between ticks.
type Runner struct {
	config Config
	core   *Core

	gazeSrc  GazeSource
	inputSrc input.Source
	mover    Mover
	registry Registry

	session    *calibration.Session
	publishers []Publisher

	tickCount  uint64
	lastAction time.Time

	moveMu   sync.Mutex
	inFlight bool
}

// NewRunner creates a loop driver. mover and registry may be nil in replay
// or test setups; publishers are optional.
func NewRunner(config Config, core *Core, gazeSrc GazeSource, inputSrc input.Source,
	mover Mover, registry Registry, session *calibration.Session, publishers ...Publisher) *Runner {
	return &Runner{
		config:     config,
		core:       core,
		gazeSrc:    gazeSrc,
		inputSrc:   inputSrc,
		mover:      mover,
		registry:   registry,
		session:    session,
		publishers: publishers,
	}
}

// Run executes the control loop until the context ends or a quit command
// arrives. Commands are honored between ticks only.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.refreshTargets(ctx); err != nil {
		// The core keeps operating without a scene; selection simply has
		// no candidates until the registry comes back.
		log.Warn("target registry unavailable at startup", "error", err)
	}

	ticker := time.NewTicker(r.config.TickInterval)
	defer ticker.Stop()

	log.Info("control loop started",
		"interval", r.config.TickInterval, "targets", len(r.core.Targets()))

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			state := r.inputSrc.Poll()
			switch state.Command {
			case input.CmdQuit:
				log.Info("quit requested")
				return nil
			case input.CmdRecalibrate:
				r.recalibrate(ctx)
				last = time.Now()
				continue
			case input.CmdResetCalibration:
				// Idempotent: resetting an unfitted model is a no-op.
				r.core.Model().Reset()
				log.Info("calibration reset to raw gaze")
			}

			dt := now.Sub(last)
			last = now
			r.step(ctx, state.Direction, dt, now)
		}
	}
}

// step runs exactly one tick and dispatches its outcome.
func (r *Runner) step(ctx context.Context, dir input.Direction, dt time.Duration, now time.Time) {
	in := TickInput{Direction: dir, DT: dt, Now: now}
	in.Sample, in.HaveSample = r.gazeSrc.Poll()

	started := time.Now()
	out := r.core.Tick(in)

	if out.Action.Select && now.Sub(r.lastAction) >= r.config.ActionCooldown {
		r.lastAction = now
		r.dispatchMove(ctx, out.Action)
	}

	r.tickCount++
	t := Telemetry{
		Tick:       r.tickCount,
		Action:     out.Action.String(),
		State:      out.State,
		Corrected:  out.Corrected,
		GazeOK:     out.GazeOK,
		Hit:        out.Hit,
		Reward:     out.Reward,
		Epsilon:    r.core.Agent().Epsilon(),
		Calibrated: r.core.Model().Fitted(),
		Elapsed:    time.Since(started),
	}
	for _, p := range r.publishers {
		p.Publish(t)
	}
}

// dispatchMove hands a confirmed selection to the simulator without blocking
// the loop. Failures are the external layer's problem: logged and dropped.
func (r *Runner) dispatchMove(ctx context.Context, action fusion.Action) {
	if r.mover == nil {
		return
	}
	var target sim.Target
	found := false
	for _, t := range r.core.Targets() {
		if t.ID == action.TargetID {
			target = t
			found = true
			break
		}
	}
	if !found {
		log.Warn("selected target no longer in scene", "target", action.TargetID)
		return
	}

	r.moveMu.Lock()
	if r.inFlight {
		r.moveMu.Unlock()
		log.Debug("move already in flight, dropping selection", "target", target.Name)
		return
	}
	r.inFlight = true
	r.moveMu.Unlock()

	go func() {
		defer func() {
			r.moveMu.Lock()
			r.inFlight = false
			r.moveMu.Unlock()
		}()
		if err := r.mover.MoveToTarget(ctx, target); err != nil {
			log.Warn("move command failed", "target", target.Name, "error", err)
			return
		}
		log.Info("moved to target", "target", target.Name)
	}()
}

// recalibrate runs a guided calibration session. The loop blocks for its
// duration; the session itself honors cancellation at state boundaries.
func (r *Runner) recalibrate(ctx context.Context) {
	if r.session == nil {
		log.Warn("no calibration session configured")
		return
	}
	if err := r.refreshTargets(ctx); err != nil {
		log.Warn("cannot calibrate without the target registry", "error", err)
		return
	}
	if err := r.session.Run(ctx, r.core.Targets(), r.core.Model()); err != nil {
		// Failed or cancelled: the model keeps its prior state.
		log.Warn("calibration session did not complete", "error", err)
		return
	}
	log.Info("calibration session complete")
}

func (r *Runner) refreshTargets(ctx context.Context) error {
	if r.registry == nil {
		return nil
	}
	targets, err := r.registry.ListTargets(ctx)
	if err != nil {
		return err
	}
	r.core.SetTargets(targets)
	return nil
}
