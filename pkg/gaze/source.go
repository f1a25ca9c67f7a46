package gaze

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cobotix/go-gazebot/internal/log"
)

// MaxSampleAge is how long a received sample counts as a live signal. The
// control loop ticks faster than the tracker streams, so one sample covers a
// few ticks; past this window Poll reports no signal.
const MaxSampleAge = 150 * time.Millisecond

// StreamSource receives gaze samples from the eye-tracking collaborator over
// a websocket and caches the most recent one. Poll never blocks.
type StreamSource struct {
	url string

	mu      sync.RWMutex
	latest  Sample
	arrived time.Time
	haveOne bool
}

// NewStreamSource creates a source for the given websocket URL. Call Run to
// start receiving.
func NewStreamSource(url string) *StreamSource {
	return &StreamSource{url: url}
}

// Run connects and keeps reading samples until the context ends, redialing
// with backoff when the tracker drops the connection.
func (s *StreamSource) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := s.readOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("gaze stream disconnected", "url", s.url, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (s *StreamSource) readOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial gaze stream: %w", err)
	}
	defer conn.Close()

	log.Info("gaze stream connected", "url", s.url)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var sample Sample
		if err := conn.ReadJSON(&sample); err != nil {
			return err
		}
		if sample.Timestamp.IsZero() {
			sample.Timestamp = time.Now()
		}
		s.Offer(sample)
	}
}

// Offer stores a sample as the current one. Exposed so replay drivers can
// feed the source without a socket.
func (s *StreamSource) Offer(sample Sample) {
	s.mu.Lock()
	s.latest = sample
	s.arrived = time.Now()
	s.haveOne = true
	s.mu.Unlock()
}

// Poll returns the most recent sample if it is still fresh.
func (s *StreamSource) Poll() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.haveOne || time.Since(s.arrived) > MaxSampleAge {
		return Sample{}, false
	}
	return s.latest, true
}
