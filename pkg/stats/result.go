package stats

import "time"

// Totals is the hit/miss rollup for one counter family over a window.
type Totals struct {
	Hits            int64   `json:"hits"`
	Misses          int64   `json:"misses"`
	TotalOperations int64   `json:"total_operations"`
	HitRatePercent  float64 `json:"hit_rate_percent"`
}

// KeyspaceTotals is a Totals plus the keyspace's display attributes.
type KeyspaceTotals struct {
	Totals
	Label   string `json:"label"`
	Pattern string `json:"pattern"`
}

// BucketPoint is one bucket's raw counters, passed through for charting.
type BucketPoint struct {
	Timestamp int64              `json:"timestamp"`
	Time      time.Time          `json:"time"`
	Stats     map[string]float64 `json:"stats"`
}

// Result is the windowed aggregate consumed by dashboards and the CLI.
// Keyspaces always contains every configured keyspace, zeroed when no
// bucket recorded it.
type Result struct {
	Overall       Totals                    `json:"overall"`
	Keyspaces     map[string]KeyspaceTotals `json:"keyspaces"`
	Buckets       []BucketPoint             `json:"buckets"`
	WindowSeconds int64                     `json:"window_seconds"`
	BucketCount   int                       `json:"bucket_count"`
}
