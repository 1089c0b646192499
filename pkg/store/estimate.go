package store

import "github.com/dustin/go-humanize"

// Assumed Redis storage costs for the capacity estimate. Measured averages,
// not guarantees: a hash field with a stringified float costs roughly 52
// bytes, each bucket key carries roughly 141 bytes of per-key overhead, and
// the metadata key is allowed a flat 200 bytes.
const (
	bytesPerField     = 52
	bytesPerKey       = 141
	metadataAllowance = 200
)

// SizeEstimate is a closed-form estimate of the Redis footprint at full
// retention.
type SizeEstimate struct {
	MaxBuckets      int    `json:"max_buckets"`
	FieldsPerBucket int    `json:"fields_per_bucket"`
	BytesPerBucket  int64  `json:"bytes_per_bucket"`
	TotalBytes      int64  `json:"total_bytes"`
	HumanReadable   string `json:"human_readable"`
}

// EstimateSize computes the worst-case storage footprint: every bucket in
// the retention window populated with every configured counter field. A
// degenerate configuration yields a zeroed estimate rather than an error.
func (s *Store) EstimateSize() SizeEstimate {
	if s.bucketSeconds <= 0 || s.retentionSeconds <= 0 {
		return SizeEstimate{HumanReadable: "unknown"}
	}

	maxBuckets := (s.retentionSeconds + s.bucketSeconds - 1) / s.bucketSeconds
	fieldsPerBucket := 2 + 2*s.keyspaceCount
	bytesPerBucket := int64(fieldsPerBucket)*bytesPerField + bytesPerKey
	totalBytes := int64(maxBuckets)*bytesPerBucket + metadataAllowance

	return SizeEstimate{
		MaxBuckets:      maxBuckets,
		FieldsPerBucket: fieldsPerBucket,
		BytesPerBucket:  bytesPerBucket,
		TotalBytes:      totalBytes,
		HumanReadable:   humanize.Bytes(uint64(totalBytes)),
	}
}
