package input

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cobotix/go-gazebot/internal/log"
)

// frame is the wire format the joystick collaborator sends.
type frame struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Command string  `json:"command,omitempty"`
}

var commandNames = map[string]Command{
	"recalibrate":       CmdRecalibrate,
	"reset_calibration": CmdResetCalibration,
	"quit":              CmdQuit,
}

// RemoteSource reads joystick frames from a websocket and exposes them
// through the non-blocking Source interface. Direction reflects the latest
// frame; commands queue so none is lost between ticks.
type RemoteSource struct {
	url string

	mu        sync.Mutex
	direction Direction
	commands  []Command
}

// NewRemoteSource creates a source for the given websocket URL. Call Run to
// start receiving.
func NewRemoteSource(url string) *RemoteSource {
	return &RemoteSource{url: url}
}

// Run connects and keeps reading frames until the context ends, redialing
// when the collaborator drops. While disconnected the stick reads neutral.
func (r *RemoteSource) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := r.readOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("joystick stream disconnected", "url", r.url, "error", err)
		}
		r.mu.Lock()
		r.direction = Neutral
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (r *RemoteSource) readOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("dial joystick stream: %w", err)
	}
	defer conn.Close()

	log.Info("joystick stream connected", "url", r.url)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}

		r.mu.Lock()
		r.direction = FromAxes(f.X, f.Y)
		if cmd, ok := commandNames[f.Command]; ok {
			r.commands = append(r.commands, cmd)
		}
		r.mu.Unlock()
	}
}

// Inject queues a command from outside the joystick stream, e.g. the
// dashboard's recalibrate button.
func (r *RemoteSource) Inject(cmd Command) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()
}

// Poll implements Source: the current direction plus at most one queued
// command.
func (r *RemoteSource) Poll() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := State{Direction: r.direction}
	if len(r.commands) > 0 {
		state.Command = r.commands[0]
		r.commands = r.commands[1:]
	}
	return state
}
