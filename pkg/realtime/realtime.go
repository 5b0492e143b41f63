// Package realtime provides the in-process publish/subscribe hub used to fan
// out shelf events to multiple listeners, such as WebSocket firehose
// sessions.
//
// The hub is best-effort: a listener whose buffer is full has that event
// dropped, so a slow consumer never backpressures saving. There is no
// persistence or replay; the stream is ephemeral. If durable semantics are
// ever needed, this package is the seam where a broker could be introduced
// behind a compatible interface.
package realtime

import (
	"sync"
	"time"
)

// BookEvent is a single shelf addition delivered over the firehose. It
// mirrors the stored book fields plus the loose metadata renderers consume.
type BookEvent struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Authors  []string       `json:"authors,omitempty"`
	SavedAt  time.Time      `json:"saved_at"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// InternalEvent is the hub's envelope. Only Type == "book" is produced
// today; the envelope leaves room for other kinds without changing channel
// element types.
type InternalEvent struct {
	Type string    `json:"type"`
	Book BookEvent `json:"book"`
}

// FirehoseHub is a concurrency-safe in-memory fan-out dispatcher. Each
// registered listener receives events on its own buffered channel.
type FirehoseHub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan InternalEvent
	nextID    uint64
	bufSize   int
}

// NewFirehoseHub constructs a hub with the given per-listener buffer size.
// Sizes <= 0 fall back to 32.
func NewFirehoseHub(bufSize int) *FirehoseHub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &FirehoseHub{
		listeners: make(map[uint64]chan InternalEvent),
		bufSize:   bufSize,
	}
}

// Register adds a listener and returns its id and receive channel. Callers
// must Unregister(id) when done.
func (h *FirehoseHub) Register() (uint64, <-chan InternalEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan InternalEvent, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener and closes its channel. Unknown ids are
// ignored, so calling it twice is safe.
func (h *FirehoseHub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers the event to every listener, dropping it for listeners
// whose buffer is full.
func (h *FirehoseHub) Broadcast(event BookEvent) {
	ie := InternalEvent{Type: "book", Book: event}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- ie:
		default:
			// Drop for slow listener.
		}
	}
}

// Size returns the current number of active listeners.
func (h *FirehoseHub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
