// Package store implements the bucketed hit/miss counter store on Redis.
//
// Counters live in Redis hashes, one hash per aligned time bucket:
//
//	<namespace>:v1:<environment>:<bucket_timestamp>
//	  overall:hits    -> "25"
//	  overall:misses  -> "15"
//	  users:hits      -> "12"
//	  users:misses    -> "3"
//
// Buckets are created implicitly on first increment and expire
// retention_seconds after their last write; a write never shortens an
// existing longer TTL. Increments run as a single server-side Lua script so
// that concurrent writers to the same bucket cannot lose updates, and so a
// failed call never leaves a torn write across the fields of one increment
// map.
//
// A small JSON metadata blob is kept under
// <namespace>:v1:<environment>:config for diagnostics, under the same TTL
// policy as the buckets.
//
// # Error handling
//
// Every operation returns an honest error wrapping *StoreError. Nothing in
// this package retries or swallows: deciding that telemetry failures are
// silent is the caller's job (the instrumentation hook and the stats query
// boundary do exactly that; administrative callers surface the error).
//
// # Metrics
//
// The package exports Prometheus self-telemetry:
//
//   - hitwatch_store_errors_total{operation} - failed store operations
//   - hitwatch_increments_applied_total - counter fields written
//   - hitwatch_fetches_truncated_total - range fetches hitting max_buckets
//   - hitwatch_buckets_pruned_total - keys removed by prune
package store
