package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// metadataScript writes the metadata blob while keeping the bucket TTL
// policy: an existing expiry is only ever extended to the retention period,
// never shortened.
var metadataScript = redis.NewScript(`
redis.call('SET', KEYS[1], ARGV[1], 'KEEPTTL')
local ttl = tonumber(ARGV[2])
if redis.call('TTL', KEYS[1]) < ttl then
  redis.call('EXPIRE', KEYS[1], ttl)
end
return redis.status_reply('OK')
`)

// Metadata is the diagnostic configuration blob persisted alongside the
// buckets. It is informational only; nothing reads it for correctness.
type Metadata struct {
	BucketSeconds    int       `json:"bucket_seconds"`
	RetentionSeconds int       `json:"retention_seconds"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StoreMetadata persists the current bucket configuration under the fixed
// per-environment metadata key, with the same retention TTL as buckets.
func (s *Store) StoreMetadata(ctx context.Context) error {
	meta := Metadata{
		BucketSeconds:    s.bucketSeconds,
		RetentionSeconds: s.retentionSeconds,
		UpdatedAt:        time.Now().UTC(),
	}

	data, err := json.Marshal(meta)
	if err != nil {
		StoreErrors.WithLabelValues("metadata").Inc()
		return storeErr("store_metadata", err)
	}

	key := MetadataKey(s.namespace, s.environment)
	if err := metadataScript.Run(ctx, s.client, []string{key}, data, s.retentionSeconds).Err(); err != nil {
		StoreErrors.WithLabelValues("metadata").Inc()
		return storeErr("store_metadata", err)
	}

	return nil
}

// FetchMetadata retrieves the persisted configuration blob. Returns
// (nil, nil) when none has been stored or it has expired.
func (s *Store) FetchMetadata(ctx context.Context) (*Metadata, error) {
	key := MetadataKey(s.namespace, s.environment)

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		StoreErrors.WithLabelValues("metadata").Inc()
		return nil, storeErr("fetch_metadata", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		StoreErrors.WithLabelValues("metadata").Inc()
		return nil, storeErr("fetch_metadata", err)
	}

	return &meta, nil
}
