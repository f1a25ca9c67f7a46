package web

import (
	"testing"
	"time"
)

// register a pump-less client directly; the hub only touches send.
func registerTestClient(h *hub, buffer int) *hubClient {
	c := &hubClient{hub: h, send: make(chan []byte, buffer)}
	h.register <- c
	return c
}

func TestHubBroadcastReachesClient(t *testing.T) {
	h := newHub("test")
	go h.run()

	c := registerTestClient(h, 4)
	h.broadcastJSON(map[string]int{"tick": 1})

	select {
	case msg := <-c.send:
		if string(msg) != `{"tick":1}` {
			t.Errorf("client received %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast never reached the client")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h := newHub("test")
	go h.run()

	slow := registerTestClient(h, 1)
	fast := registerTestClient(h, 4)

	// First broadcast fills the slow client's buffer; the second must drop it
	// instead of stalling the hub.
	h.broadcastJSON(map[string]int{"tick": 1})
	h.broadcastJSON(map[string]int{"tick": 2})

	deadline := time.After(time.Second)
	got := 0
	for got < 2 {
		select {
		case <-fast.send:
			got++
		case <-deadline:
			t.Fatal("fast client starved while a slow client was connected")
		}
	}

	// The slow client's channel is closed once its buffered message drains.
	<-slow.send
	select {
	case _, ok := <-slow.send:
		if ok {
			t.Error("slow client still receiving after drop")
		}
	case <-time.After(time.Second):
		t.Fatal("slow client was never dropped")
	}
}
