// Package stats reduces bucketed counters into windowed hit-rate rollups.
package stats

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/hitwatch/pkg/config"
	"github.com/Sternrassler/hitwatch/pkg/store"
)

// Query computes trailing-window statistics from the bucket store. It is
// deterministic and side-effect-free: safe to call concurrently and
// repeatedly, it never mutates stored data.
type Query struct {
	cfg    *config.Config
	store  *store.Store
	logger zerolog.Logger
}

// NewQuery creates a query engine over a validated configuration.
func NewQuery(cfg *config.Config, st *store.Store, logger zerolog.Logger) *Query {
	return &Query{cfg: cfg, store: st, logger: logger}
}

// Execute aggregates the trailing window ending at now. This is the
// collaborator boundary: a failing store degrades to an all-zero result
// with a log line, never an error — a broken telemetry store must show up
// as an empty dashboard, not as an application fault.
func (q *Query) Execute(ctx context.Context, window time.Duration, now time.Time) *Result {
	toTS := now.Unix()
	fromTS := toTS - int64(window.Seconds())

	buckets, err := q.store.FetchRange(ctx, fromTS, toTS)
	if err != nil {
		q.logger.Warn().Err(err).Msg("stats query degraded to empty result")
		buckets = nil
	}

	return q.reduce(buckets, int64(window.Seconds()))
}

// reduce rolls fetched buckets into overall and per-keyspace totals.
// Accumulation stays in floating point; hits and misses are rounded to
// integers only at the final aggregate so rounding error cannot compound
// across buckets. A bucket missing a field contributes zero.
func (q *Query) reduce(buckets []store.Bucket, windowSeconds int64) *Result {
	var overallHits, overallMisses float64
	ksHits := make(map[string]float64, len(q.cfg.Keyspaces))
	ksMisses := make(map[string]float64, len(q.cfg.Keyspaces))

	points := make([]BucketPoint, 0, len(buckets))
	for _, b := range buckets {
		overallHits += b.Stats[store.FieldOverallHits]
		overallMisses += b.Stats[store.FieldOverallMisses]
		for _, ks := range q.cfg.Keyspaces {
			ksHits[ks.Name] += b.Stats[ks.Name+":hits"]
			ksMisses[ks.Name] += b.Stats[ks.Name+":misses"]
		}
		points = append(points, BucketPoint{
			Timestamp: b.Timestamp,
			Time:      time.Unix(b.Timestamp, 0).UTC(),
			Stats:     b.Stats,
		})
	}

	keyspaces := make(map[string]KeyspaceTotals, len(q.cfg.Keyspaces))
	for _, ks := range q.cfg.Keyspaces {
		keyspaces[ks.Name] = KeyspaceTotals{
			Totals:  totalsFrom(ksHits[ks.Name], ksMisses[ks.Name]),
			Label:   ks.Label,
			Pattern: ks.Pattern.String(),
		}
	}

	return &Result{
		Overall:       totalsFrom(overallHits, overallMisses),
		Keyspaces:     keyspaces,
		Buckets:       points,
		WindowSeconds: windowSeconds,
		BucketCount:   len(points),
	}
}

// totalsFrom finalizes one counter family: round to integers, derive the
// hit rate as a percentage with two decimals, zero when there were no
// operations.
func totalsFrom(hits, misses float64) Totals {
	h := int64(math.Round(hits))
	m := int64(math.Round(misses))
	total := h + m

	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(h)/float64(total)*100*100) / 100
	}

	return Totals{
		Hits:            h,
		Misses:          m,
		TotalOperations: total,
		HitRatePercent:  rate,
	}
}
