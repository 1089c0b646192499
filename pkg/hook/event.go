package hook

import "context"

// Event is one cache-read notification delivered by the host application.
type Event struct {
	// Store identifies which cache store instance performed the read.
	// Events from stores other than the monitored one are ignored.
	Store string

	// Hit reports whether the read was served from cache.
	Hit bool

	// Payload carries the producer-specific notification fields. The
	// accessed key is extracted from the fields named by the
	// configuration's KeyFields, in priority order; different producers
	// populate different field names.
	Payload map[string]string
}

// Handler consumes cache-read events. It is invoked synchronously on
// whatever goroutine delivers the notification.
type Handler func(ctx context.Context, ev Event)

// EventSource is the subscription interface the host exposes for its
// cache-read notification stream.
type EventSource interface {
	// Subscribe registers a handler and returns a function that removes it.
	Subscribe(h Handler) (unsubscribe func())
}
