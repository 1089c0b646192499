package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreErrors tracks failed store operations by operation name.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hitwatch_store_errors_total",
			Help: "Total number of failed bucket store operations",
		},
		[]string{"operation"}, // "increment", "fetch_range", "metadata", "prune"
	)

	// IncrementsApplied counts counter fields written to buckets.
	IncrementsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hitwatch_increments_applied_total",
			Help: "Total number of counter fields applied to buckets",
		},
	)

	// FetchesTruncated counts range fetches that exceeded max_buckets.
	FetchesTruncated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hitwatch_fetches_truncated_total",
			Help: "Total number of range fetches truncated to max_buckets",
		},
	)

	// BucketsPruned counts bucket keys removed by administrative prunes.
	BucketsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hitwatch_buckets_pruned_total",
			Help: "Total number of bucket keys deleted by prune",
		},
	)
)
