// Package metrics provides the centralized Prometheus metrics registry for
// hitwatch. All metrics are defined in their respective packages (hook,
// store) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by hitwatch.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Hook Metrics (pkg/hook):
//   - hitwatch_events_total{outcome} (Counter): Cache-read events by handling
//     outcome (recorded, buffered, suppressed, foreign_store, no_key,
//     own_key, sampled_out, panic)
//   - hitwatch_buffer_dropped_total (Counter): Events discarded by full
//     deferred-flush buffers
//
// Store Metrics (pkg/store):
//   - hitwatch_store_errors_total{operation} (Counter): Failed store
//     operations (increment, fetch_range, metadata, prune)
//   - hitwatch_increments_applied_total (Counter): Counter fields written
//   - hitwatch_fetches_truncated_total (Counter): Range fetches truncated
//     to max_buckets
//   - hitwatch_buckets_pruned_total (Counter): Bucket keys deleted by prune
//
// Example Prometheus Queries:
//
//   # Event drop rate (anything not recorded or buffered)
//   sum(rate(hitwatch_events_total{outcome!~"recorded|buffered"}[5m])) /
//   sum(rate(hitwatch_events_total[5m]))
//
//   # Store failure rate by operation
//   rate(hitwatch_store_errors_total[5m])
//
//   # Buffer pressure
//   rate(hitwatch_buffer_dropped_total[5m])
