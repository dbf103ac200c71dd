package hub

import (
	"encoding/json"
	"testing"
	"time"
)

// subscribe registers a bare client with the running hub. The pumps
// never start, so the test reads payloads straight off the send queue.
func subscribe(t *testing.T, h *Hub, depth int) *Client {
	t.Helper()
	c := &Client{hub: h, logger: h.logger, send: make(chan []byte, depth)}
	h.register <- c
	return c
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for h.ClientCount() != want {
		select {
		case <-deadline:
			t.Fatalf("ClientCount = %d, want %d", h.ClientCount(), want)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestBroadcastJSONFanOut(t *testing.T) {
	h := New("events", nil)
	go h.Run()

	a := subscribe(t, h, 4)
	b := subscribe(t, h, 4)
	waitForClients(t, h, 2)

	if err := h.BroadcastJSON(map[string]string{"kind": "state"}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}

	for _, c := range []*Client{a, b} {
		select {
		case payload := <-c.send:
			var got map[string]string
			if err := json.Unmarshal(payload, &got); err != nil {
				t.Fatalf("unmarshal payload: %v", err)
			}
			if got["kind"] != "state" {
				t.Errorf("payload kind = %q, want state", got["kind"])
			}
		case <-time.After(2 * time.Second):
			t.Fatal("payload not delivered")
		}
	}
}

func TestSlowClientDropped(t *testing.T) {
	h := New("events", nil)
	go h.Run()

	slow := subscribe(t, h, 1)
	waitForClients(t, h, 1)

	// The first payload fills the queue; the second finds it full and
	// evicts the client.
	h.Broadcast([]byte(`{"n":1}`))
	h.Broadcast([]byte(`{"n":2}`))
	waitForClients(t, h, 0)

	// Eviction closes the send queue after the buffered payload.
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("send queue still open after eviction")
	}
}

func TestBroadcastJSONRejectsUnencodable(t *testing.T) {
	h := New("events", nil)
	if err := h.BroadcastJSON(make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}
