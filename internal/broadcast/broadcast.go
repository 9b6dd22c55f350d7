// Package broadcast provides a publish/subscribe hub fanning state
// snapshots out to registered callbacks.
package broadcast

import "sync"

// Hub fans values out to subscriber callbacks. Callbacks are invoked
// synchronously, outside the hub's lock, in no particular order; they must
// treat the value as read-only.
type Hub[T any] struct {
	mu   sync.Mutex
	subs map[int]func(T)
	next int
}

// NewHub creates an empty Hub.
//
// Postcondition: Returns a non-nil Hub with no subscribers.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[int]func(T))}
}

// Subscribe registers fn to receive every published value. The returned
// function removes the subscription; calling it more than once is safe.
//
// Precondition: fn must not be nil.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers v to every current subscriber.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	fns := make([]func(T), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of active subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
