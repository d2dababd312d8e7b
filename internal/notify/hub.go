// Package notify fans out in-process notifications to any number of
// subscribers without ever blocking the publisher.
package notify

import "sync"

const defaultBuffer = 8

// Hub delivers published values to every current subscriber. Sends are
// non-blocking: a subscriber whose buffer is full misses the value.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[chan T]struct{}
	buffer int
}

// NewHub returns a hub whose subscriber channels hold up to buffer values.
func NewHub[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub[T]{subs: map[chan T]struct{}{}, buffer: buffer}
}

// Subscribe registers a new subscriber. cancel removes it and closes the
// channel; calling cancel more than once is safe.
func (h *Hub[T]) Subscribe() (ch <-chan T, cancel func()) {
	c := make(chan T, h.buffer)
	h.mu.Lock()
	h.subs[c] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return c, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, c)
			h.mu.Unlock()
			close(c)
		})
	}
}

// Publish sends v to every subscriber that has room for it.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs {
		select {
		case c <- v:
		default:
		}
	}
}

// Len reports the number of live subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Signal is a payload-free hub used for "something changed" notifications.
type Signal = Hub[struct{}]

// NewSignal returns a Signal hub with the default buffer.
func NewSignal() *Signal { return NewHub[struct{}](defaultBuffer) }

// Notify publishes an empty value on s.
func Notify(s *Signal) { s.Publish(struct{}{}) }
