// Gazebot runs the gaze-joystick fusion control loop against the simulator:
// it conditions the eye tracker stream, tracks dwell over scene targets,
// fuses gaze with the joystick through a learned policy, and dispatches
// confirmed selections as pick sequences.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cobotix/go-gazebot/internal/config"
	"github.com/cobotix/go-gazebot/internal/log"
	"github.com/cobotix/go-gazebot/pkg/calibration"
	"github.com/cobotix/go-gazebot/pkg/dwell"
	"github.com/cobotix/go-gazebot/pkg/engine"
	"github.com/cobotix/go-gazebot/pkg/fusion"
	"github.com/cobotix/go-gazebot/pkg/gaze"
	"github.com/cobotix/go-gazebot/pkg/input"
	"github.com/cobotix/go-gazebot/pkg/sim"
	"github.com/cobotix/go-gazebot/pkg/store"
	"github.com/cobotix/go-gazebot/pkg/telemetry"
	"github.com/cobotix/go-gazebot/pkg/web"
)

type options struct {
	simURL      string
	gazeURL     string
	joystickURL string
	mqttBroker  string
	dashPort    string
	dataDir     string
	logLevel    string
	noDashboard bool
	noMQTT      bool
	freshPolicy bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.simURL, "sim-url", config.SimURL(), "simulator bridge websocket URL")
	flag.StringVar(&o.gazeURL, "gaze-url", config.GazeURL(), "eye tracker stream websocket URL")
	flag.StringVar(&o.joystickURL, "joystick-url", config.JoystickURL(), "joystick stream websocket URL")
	flag.StringVar(&o.mqttBroker, "mqtt-broker", config.MQTTBroker(), "telemetry MQTT broker")
	flag.StringVar(&o.dashPort, "dashboard-port", config.DashboardPort(), "dashboard listen port")
	flag.StringVar(&o.dataDir, "data-dir", config.DataDir(), "directory for persisted policy and calibration")
	flag.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.BoolVar(&o.noDashboard, "no-dashboard", false, "disable the web dashboard")
	flag.BoolVar(&o.noMQTT, "no-mqtt", false, "disable MQTT telemetry")
	flag.BoolVar(&o.freshPolicy, "fresh-policy", false, "ignore the persisted Q-table and start learning from scratch")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()
	log.Init(opts.logLevel)

	if err := run(opts); err != nil && err != context.Canceled {
		log.Error("gazebot exited", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(opts.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	policyStore := store.NewFileStore(filepath.Join(opts.dataDir, "policy.json"))
	modelStore := store.NewFileStore(filepath.Join(opts.dataDir, "calibration.json"))

	// Assemble the pipeline.
	conditioner := gaze.NewConditioner(gaze.DefaultConfig())
	model := calibration.NewModel(calibration.DefaultDegree)
	tracker := dwell.NewTracker(dwell.DefaultConfig())
	agent := fusion.NewAgent(fusion.DefaultConfig(), rand.New(rand.NewSource(time.Now().UnixNano())))

	if !opts.freshPolicy {
		restore(policyStore, "policy", agent.Restore)
	}
	restore(modelStore, "calibration", model.Restore)

	core := engine.NewCore(engine.DefaultConfig(), conditioner, model, tracker, agent)

	// Collaborator streams keep reconnecting on their own for the whole run.
	gazeSrc := gaze.NewStreamSource(opts.gazeURL)
	go gazeSrc.Run(ctx)
	joystick := input.NewRemoteSource(opts.joystickURL)
	go joystick.Run(ctx)

	// Simulator connection. The loop starts regardless; without it there are
	// simply no targets and no moves.
	var mover engine.Mover
	var registry engine.Registry
	var display calibration.MarkerDisplay = noMarker{}
	simClient, err := sim.Dial(ctx, opts.simURL)
	if err != nil {
		log.Warn("simulator unavailable, running without scene", "error", err)
	} else {
		defer simClient.Close()
		mover = simClient
		registry = simClient
		display = simClient
	}

	session := calibration.NewSession(calibration.DefaultSessionConfig(), display,
		&liveGaze{src: gazeSrc, cond: conditioner})

	var publishers []engine.Publisher

	if !opts.noMQTT {
		pub, err := telemetry.NewMQTTPublisher(telemetry.Config{
			Broker:   opts.mqttBroker,
			ClientID: "gazebot-engine",
		})
		if err != nil {
			log.Warn("telemetry disabled", "error", err)
		} else {
			defer pub.Close()
			publishers = append(publishers, pub)
		}
	}

	if !opts.noDashboard {
		dash := web.NewServer(opts.dashPort)
		dash.Targets = core.Targets
		dash.PolicySnapshot = agent.Snapshot
		dash.OnRecalibrate = func() error {
			joystick.Inject(input.CmdRecalibrate)
			return nil
		}
		dash.StartAsync()
		defer dash.Shutdown()
		publishers = append(publishers, dash)
	}

	runner := engine.NewRunner(engine.DefaultConfig(), core, gazeSrc, joystick,
		mover, registry, session, publishers...)

	runErr := runner.Run(ctx)

	// Persist learned state on the way out, whatever ended the run.
	persist(policyStore, "policy", agent.Snapshot)
	persist(modelStore, "calibration", model.Snapshot)

	return runErr
}

func restore(s *store.FileStore, name string, fn func([]byte) error) {
	data, err := s.Load()
	if err != nil {
		log.Warn("load persisted state failed", "store", name, "error", err)
		return
	}
	if data == nil {
		return
	}
	if err := fn(data); err != nil {
		log.Warn("restore persisted state failed", "store", name, "error", err)
		return
	}
	log.Info("restored persisted state", "store", name)
}

func persist(s *store.FileStore, name string, fn func() ([]byte, error)) {
	data, err := fn()
	if err != nil {
		log.Warn("snapshot failed", "store", name, "error", err)
		return
	}
	if err := s.Save(data); err != nil {
		log.Warn("persist failed", "store", name, "error", err)
		return
	}
	log.Info("persisted state", "store", name)
}

// liveGaze conditions the raw stream for calibration sessions, which run
// while the main loop is paused and therefore poll the stream themselves.
type liveGaze struct {
	src  *gaze.StreamSource
	cond *gaze.Conditioner
}

func (g *liveGaze) Current() (gaze.Point, bool) {
	if s, ok := g.src.Poll(); ok {
		return g.cond.Condition(s)
	}
	return g.cond.Current()
}

// noMarker is the display used when no simulator is connected.
type noMarker struct{}

func (noMarker) ShowMarker(sim.Target, int, int) {}
func (noMarker) HideMarker()                     {}
