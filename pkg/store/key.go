package store

import (
	"fmt"
	"strconv"
	"strings"
)

// keyVersion is embedded in every Redis key so that a future wire-format
// change can coexist with old data.
const keyVersion = "v1"

// Counter field names for the aggregate counters. Per-keyspace fields use
// "<keyspace_name>:hits" / "<keyspace_name>:misses".
const (
	FieldOverallHits   = "overall:hits"
	FieldOverallMisses = "overall:misses"
)

// Align floors a Unix timestamp to its bucket boundary. Align is idempotent
// and Align(t) <= t < Align(t)+bucketSeconds.
func Align(t int64, bucketSeconds int) int64 {
	bs := int64(bucketSeconds)
	if bs <= 0 {
		return t
	}
	aligned := (t / bs) * bs
	if t < 0 && t%bs != 0 {
		aligned -= bs
	}
	return aligned
}

// KeyPrefix returns the namespace prefix shared by every key this
// environment writes, e.g. "hitwatch:v1:production:".
func KeyPrefix(namespace, environment string) string {
	return fmt.Sprintf("%s:%s:%s:", namespace, keyVersion, environment)
}

// BucketKey returns the Redis key for an aligned bucket timestamp.
func BucketKey(namespace, environment string, bucketTS int64) string {
	return fmt.Sprintf("%s%d", KeyPrefix(namespace, environment), bucketTS)
}

// MetadataKey returns the Redis key holding the configuration metadata blob.
func MetadataKey(namespace, environment string) string {
	return KeyPrefix(namespace, environment) + "config"
}

// TimestampFromKey extracts the bucket timestamp embedded in a bucket key.
// Returns false for the metadata key or any key not ending in a timestamp.
func TimestampFromKey(key string) (int64, bool) {
	idx := strings.LastIndexByte(key, ':')
	if idx < 0 || idx == len(key)-1 {
		return 0, false
	}
	ts, err := strconv.ParseInt(key[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
