package hook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsObserved counts handled events by outcome.
	EventsObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hitwatch_events_total",
			Help: "Total number of cache-read events by handling outcome",
		},
		// "recorded", "buffered", "suppressed", "foreign_store",
		// "no_key", "own_key", "sampled_out", "panic"
		[]string{"outcome"},
	)

	// BufferDropped counts events discarded by full flush buffers.
	BufferDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hitwatch_buffer_dropped_total",
			Help: "Total number of buffered events dropped due to the buffer cap",
		},
	)
)
