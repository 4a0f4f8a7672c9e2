// Package hub fans state snapshots out to stream subscribers.
package hub

import "sync"

// Hub delivers the latest value to every registered subscriber. A subscriber
// that falls behind only misses intermediate values, never the newest one.
type Hub[T any] struct {
	mu      sync.Mutex
	clients map[chan T]struct{}
	closed  bool
}

func New[T any]() *Hub[T] {
	return &Hub[T]{clients: make(map[chan T]struct{})}
}

// Register adds a subscriber. The returned channel is closed by Unregister
// or Close. Registering on a closed hub yields an already closed channel.
func (h *Hub[T]) Register() <-chan T {
	ch := make(chan T, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.clients[ch] = struct{}{}
	return ch
}

func (h *Hub[T]) Unregister(sub <-chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		if ch == sub {
			delete(h.clients, ch)
			close(ch)
			return
		}
	}
}

func (h *Hub[T]) Broadcast(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for ch := range h.clients {
		select {
		case ch <- v:
		default:
			// replace the unread value
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unregisters every subscriber. Later broadcasts are dropped.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}
