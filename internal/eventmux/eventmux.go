// Package eventmux fans session output out to multiple consumers: the
// session store, the serial sink, and any number of live SSE clients.
// Delivery is fire-and-forget; a slow subscriber drops messages rather
// than stalling the capture loop.
package eventmux

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"tailscale.com/tsweb"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls further behind than this loses messages.
const subscriberBuffer = 64

// Mux is a generic event multiplexer: one publisher, many subscribers.
type Mux[T any] struct {
	mu          sync.Mutex
	subscribers map[string]chan T
	drops       map[string]uint64
	closing     bool
}

// New creates an empty mux.
func New[T any]() *Mux[T] {
	return &Mux[T]{
		subscribers: make(map[string]chan T),
		drops:       make(map[string]uint64),
	}
}

// randomID generates a random subscriber ID (8 byte random hex encoded
// value).
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber and returns its ID and receive
// channel. The channel closes on Unsubscribe or Close.
func (m *Mux[T]) Subscribe() (string, <-chan T) {
	id := randomID()
	ch := make(chan T, subscriberBuffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		close(ch)
		return id, ch
	}
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *Mux[T]) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Publish delivers the event to every subscriber without blocking.
// Events to a full subscriber channel are dropped and counted against
// that subscriber.
func (m *Mux[T]) Publish(event T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return
	}
	for id, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			m.drops[id]++
		}
	}
}

// Send implements the observer contract over Publish.
func (m *Mux[T]) Send(event T) { m.Publish(event) }

// Drops returns per-subscriber counts of messages dropped to full
// channels.
func (m *Mux[T]) Drops() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.drops))
	for id, n := range m.drops {
		out[id] = n
	}
	return out
}

// SubscriberCount returns the number of live subscribers.
func (m *Mux[T]) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Close closes every subscriber channel. Later publishes are
// discarded; later subscribes receive an already-closed channel.
func (m *Mux[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return
	}
	m.closing = true
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
}

// ServeTail streams events to the client as Server-Sent Events, one
// JSON document per event, until the client disconnects or the mux
// closes.
func (m *Mux[T]) ServeTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, ch := m.Subscribe()
	defer m.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// AttachAdminRoutes attaches debugging endpoints to the given HTTP mux
// served at /debug/. These routes are accessible only over
// localhost/via Tailscale and are not publicly accessible.
func (m *Mux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleSilentFunc("events-tail", m.ServeTail)

	debug.HandleSilentFunc("events-stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"subscribers": m.SubscriberCount(),
			"drops":       m.Drops(),
		})
	})
}
