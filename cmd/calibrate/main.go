// Calibrate runs one guided calibration session against the simulator scene
// and persists the fitted model for the control loop to pick up.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cobotix/go-gazebot/internal/config"
	"github.com/cobotix/go-gazebot/internal/log"
	"github.com/cobotix/go-gazebot/pkg/calibration"
	"github.com/cobotix/go-gazebot/pkg/gaze"
	"github.com/cobotix/go-gazebot/pkg/sim"
	"github.com/cobotix/go-gazebot/pkg/store"
)

func main() {
	simURL := flag.String("sim-url", config.SimURL(), "simulator bridge websocket URL")
	gazeURL := flag.String("gaze-url", config.GazeURL(), "eye tracker stream websocket URL")
	dataDir := flag.String("data-dir", config.DataDir(), "directory for the persisted model")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*logLevel)

	if err := run(*simURL, *gazeURL, *dataDir); err != nil {
		log.Error("calibration failed", "error", err)
		os.Exit(1)
	}
}

func run(simURL, gazeURL, dataDir string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	simClient, err := sim.Dial(ctx, simURL)
	if err != nil {
		return err
	}
	defer simClient.Close()

	targets, err := simClient.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	log.Info("scene loaded", "targets", len(targets))

	gazeSrc := gaze.NewStreamSource(gazeURL)
	go gazeSrc.Run(ctx)

	conditioner := gaze.NewConditioner(gaze.DefaultConfig())
	model := calibration.NewModel(calibration.DefaultDegree)

	session := calibration.NewSession(calibration.DefaultSessionConfig(), simClient,
		&liveGaze{src: gazeSrc, cond: conditioner})
	if err := session.Run(ctx, targets, model); err != nil {
		return err
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := model.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot model: %w", err)
	}
	path := filepath.Join(dataDir, "calibration.json")
	if err := store.NewFileStore(path).Save(data); err != nil {
		return fmt.Errorf("save model: %w", err)
	}

	log.Info("calibration saved", "path", path)
	return nil
}

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
