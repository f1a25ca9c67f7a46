package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cobotix/go-gazebot/internal/log"
)

// ErrNotConnected is returned when a request is made without a live
// simulator connection.
var ErrNotConnected = errors.New("sim: not connected")

// Request timeouts and retry policy.
const (
	dialTimeout    = 5 * time.Second
	requestTimeout = 3 * time.Second
	writeTimeout   = 2 * time.Second
	moveRetries    = 2
	retryBackoff   = 500 * time.Millisecond

	redialBackoff    = 500 * time.Millisecond
	maxRedialBackoff = 5 * time.Second
)

// Client talks to the simulation environment over a websocket. One reader
// goroutine routes responses back to waiting requests by message id. A
// dropped connection is redialed in the background; requests made in the
// window fail with ErrNotConnected and the engine keeps running.
type Client struct {
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan *Message
	closed  bool
}

// Dial connects to the simulator bridge.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial simulator: %w", err)
	}

	c := &Client{
		url:     url,
		conn:    conn,
		pending: make(map[string]chan *Message),
	}
	go c.readLoop(conn)

	log.Info("connected to simulator", "url", url)
	return c, nil
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// Connected reports whether a live connection exists.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// ListTargets queries the scene target registry.
func (c *Client) ListTargets(ctx context.Context) ([]Target, error) {
	resp, err := c.request(ctx, TypeListTargets, nil)
	if err != nil {
		return nil, err
	}
	var data TargetsData
	if err := resp.ParseData(&data); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	return data.Targets, nil
}

// MoveTo drives the arm's IK target to a scene position, retrying a bounded
// number of times before giving up.
func (c *Client) MoveTo(ctx context.Context, position Vec3) error {
	var lastErr error
	for attempt := 0; attempt <= moveRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
		resp, err := c.request(ctx, TypeMove, MoveData{Position: position})
		if err != nil {
			lastErr = err
			continue
		}
		var ack AckData
		if err := resp.ParseData(&ack); err != nil {
			lastErr = fmt.Errorf("parse ack: %w", err)
			continue
		}
		if !ack.OK {
			lastErr = fmt.Errorf("simulator rejected move: %s", ack.Error)
			continue
		}
		return nil
	}
	return lastErr
}

// Grasp heights for the pick sequence, in scene units.
const (
	preGraspHeight = 0.1
	liftHeight     = 0.2
	settleDelay    = 1 * time.Second
)

// MoveToTarget runs the full manipulation sequence for a selected target:
// approach above it, descend to grasp, then lift.
func (c *Client) MoveToTarget(ctx context.Context, target Target) error {
	preGrasp := target.Scene
	preGrasp.Z += preGraspHeight
	if err := c.moveAndSettle(ctx, preGrasp); err != nil {
		return fmt.Errorf("pre-grasp: %w", err)
	}

	if err := c.moveAndSettle(ctx, target.Scene); err != nil {
		return fmt.Errorf("grasp: %w", err)
	}

	lift := target.Scene
	lift.Z += liftHeight
	if err := c.moveAndSettle(ctx, lift); err != nil {
		return fmt.Errorf("lift: %w", err)
	}
	return nil
}

func (c *Client) moveAndSettle(ctx context.Context, position Vec3) error {
	if err := c.MoveTo(ctx, position); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(settleDelay):
		return nil
	}
}

// ShowMarker asks the simulator to render the calibration marker over a
// target. Fire-and-forget: marker rendering is cosmetic, a failed write is
// logged and the session carries on.
func (c *Client) ShowMarker(target Target, index, total int) {
	c.send(TypeShowMarker, MarkerData{
		TargetID: target.ID,
		Name:     target.Name,
		Index:    index,
		Total:    total,
	})
}

// HideMarker removes the calibration marker overlay.
func (c *Client) HideMarker() {
	c.send(TypeHideMarker, nil)
}

// send writes a one-way message with no response expected.
func (c *Client) send(msgType MessageType, data interface{}) {
	msg, err := NewMessage(msgType, "", data)
	if err != nil {
		log.Warn("marshal one-way message failed", "type", msgType, "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Warn("one-way message write failed", "type", msgType, "error", err)
	}
}

// request sends one message and waits for the matching response.
func (c *Client) request(ctx context.Context, msgType MessageType, data interface{}) (*Message, error) {
	id := uuid.NewString()
	msg, err := NewMessage(msgType, id, data)
	if err != nil {
		return nil, err
	}

	ch := make(chan *Message, 1)

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending[id] = ch
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = c.conn.WriteJSON(msg)
	c.mu.Unlock()

	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("write %s: %w", msgType, err)
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	case <-timer.C:
		c.forget(id)
		return nil, fmt.Errorf("%s: timed out waiting for simulator", msgType)
	case resp := <-ch:
		if resp == nil {
			return nil, ErrNotConnected
		}
		return resp, nil
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop routes responses to their waiting requests until the connection
// dies, then fails everything still pending.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msg, err := ParseMessage(data)
		if err != nil {
			log.Warn("bad simulator message", "error", err)
			continue
		}
		if msg.Type == TypePing {
			pong, _ := NewMessage(TypePong, msg.ID, nil)
			c.mu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				c.conn.WriteJSON(pong)
			}
			c.mu.Unlock()
			continue
		}
		if msg.ID == "" {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		if ok {
			delete(c.pending, msg.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}

	c.mu.Lock()
	closed := c.closed
	if c.conn == conn {
		c.conn = nil
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !closed {
		log.Warn("simulator connection lost", "url", c.url)
		go c.redial()
	}
}

// redial keeps trying to re-establish a dropped connection until it succeeds
// or the client is closed. Requests made while disconnected fail with
// ErrNotConnected and are not replayed.
func (c *Client) redial() {
	backoff := redialBackoff
	for {
		time.Sleep(backoff)

		c.mu.Lock()
		if c.closed || c.conn != nil {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
		conn, _, err := dialer.Dial(c.url, nil)
		if err != nil {
			log.Debug("simulator redial failed", "url", c.url, "error", err)
			if backoff < maxRedialBackoff {
				backoff *= 2
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		log.Info("simulator reconnected", "url", c.url)
		go c.readLoop(conn)
		return
	}
}
