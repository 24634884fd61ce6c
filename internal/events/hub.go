// Package events fans run outcomes out to SSE subscribers of the status
// server.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event is one pipeline outcome pushed to subscribers.
type Event struct {
	Kind      string    `json:"kind"` // "ingest" | "reconcile" | "alert"
	At        time.Time `json:"at"`
	Found     int       `json:"found,omitempty"`
	Processed int       `json:"processed,omitempty"`
	Skipped   int       `json:"skipped,omitempty"`
	Errors    int       `json:"errors,omitempty"`
	Matched   int       `json:"matched,omitempty"`
	Message   string    `json:"message,omitempty"`
}

type Hub struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
	last    *Event
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan string]struct{})}
}

func (h *Hub) Subscribe() chan string {
	ch := make(chan string, 10)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan string) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// Publish broadcasts the event as a JSON line. Slow subscribers drop
// events rather than stall the pipeline.
func (h *Hub) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return
	}
	line := string(b)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &evt
	for ch := range h.clients {
		select {
		case ch <- line:
		default:
		}
	}
}

// Last returns the most recently published event, if any.
func (h *Hub) Last() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return Event{}, false
	}
	return *h.last, true
}
