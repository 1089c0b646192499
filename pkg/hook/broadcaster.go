package hook

import (
	"context"
	"sync"
)

// Broadcaster is an in-process EventSource for hosts that do not already
// have a notification bus. Publish fans an event out to every subscribed
// handler, synchronously, on the caller's goroutine.
type Broadcaster struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{handlers: make(map[int]Handler)}
}

// Subscribe implements EventSource.
func (b *Broadcaster) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish delivers an event to all current subscribers.
func (b *Broadcaster) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}
