package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/hitwatch/pkg/config"
)

// incrementScript applies a batch of counter increments to one bucket hash
// and refreshes its TTL, atomically. Running server-side is what makes
// concurrent increments to the same bucket lossless: a client-side
// read-modify-write would drop updates under concurrent writers. The TTL is
// only ever extended, never shortened (TTL returns -1 for a key without
// expiry and -2 for a missing key, both below any positive retention).
var incrementScript = redis.NewScript(`
local ttl = tonumber(ARGV[1])
for i = 2, #ARGV, 2 do
  redis.call('HINCRBYFLOAT', KEYS[1], ARGV[i], ARGV[i+1])
end
if redis.call('TTL', KEYS[1]) < ttl then
  redis.call('EXPIRE', KEYS[1], ttl)
end
return redis.status_reply('OK')
`)

// Bucket is one time bucket's counters as fetched from Redis.
type Bucket struct {
	// Timestamp is the aligned bucket boundary (Unix seconds).
	Timestamp int64

	// Stats maps counter field name to its accumulated value.
	Stats map[string]float64
}

// Store is the bucketed counter store backed by Redis. All operations return
// honest errors wrapped in *StoreError; callers on the hot path are expected
// to log and swallow them at their boundary.
type Store struct {
	client           *redis.Client
	bucketSeconds    int
	retentionSeconds int
	maxBuckets       int
	namespace        string
	environment      string
	keyspaceCount    int
	logger           zerolog.Logger
}

// New resolves the configured store source and creates a bucket store.
// The connection pool is bounded by cfg.RedisPoolSize; pool exhaustion
// blocks callers according to the pool's own acquire semantics.
func New(cfg *config.Config, logger zerolog.Logger) (*Store, error) {
	client, err := cfg.Store.Resolve(cfg.RedisPoolSize)
	if err != nil {
		return nil, fmt.Errorf("resolve store source: %w", err)
	}
	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient creates a bucket store around an existing Redis client.
func NewWithClient(client *redis.Client, cfg *config.Config, logger zerolog.Logger) *Store {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		client:           client,
		bucketSeconds:    cfg.BucketSeconds,
		retentionSeconds: cfg.RetentionSeconds,
		maxBuckets:       cfg.MaxBuckets,
		namespace:        cfg.Namespace,
		environment:      cfg.Environment,
		keyspaceCount:    len(cfg.Keyspaces),
		logger:           logger,
	}
}

// KeyPrefix returns the namespace prefix of every key this store writes.
func (s *Store) KeyPrefix() string {
	return KeyPrefix(s.namespace, s.environment)
}

// AlignTimestamp floors a Unix timestamp to this store's bucket boundary.
func (s *Store) AlignTimestamp(t int64) int64 {
	return Align(t, s.bucketSeconds)
}

// Increment atomically applies the increment map to the bucket at bucketTS.
// Every field is an independent add-if-exists-else-create; the bucket is
// created implicitly on first write and its TTL is refreshed to the
// retention period unless an existing TTL is already longer.
func (s *Store) Increment(ctx context.Context, bucketTS int64, increments map[string]float64) error {
	if len(increments) == 0 {
		return nil
	}

	// Deterministic field order keeps the script invocation reproducible.
	fields := make([]string, 0, len(increments))
	for field := range increments {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	argv := make([]interface{}, 0, 1+2*len(fields))
	argv = append(argv, s.retentionSeconds)
	for _, field := range fields {
		argv = append(argv, field, strconv.FormatFloat(increments[field], 'f', -1, 64))
	}

	key := BucketKey(s.namespace, s.environment, bucketTS)
	if err := incrementScript.Run(ctx, s.client, []string{key}, argv...).Err(); err != nil {
		StoreErrors.WithLabelValues("increment").Inc()
		return storeErr("increment", err)
	}

	IncrementsApplied.Add(float64(len(fields)))
	return nil
}

// FetchRange returns the non-empty buckets between align(fromTS) and
// align(toTS) inclusive, ascending by timestamp. All candidate keys are
// fetched in a single pipelined round trip. Ranges spanning more than
// max_buckets boundaries are truncated to the most recent max_buckets.
func (s *Store) FetchRange(ctx context.Context, fromTS, toTS int64) ([]Bucket, error) {
	if toTS < fromTS {
		return nil, nil
	}

	from := s.AlignTimestamp(fromTS)
	to := s.AlignTimestamp(toTS)
	bs := int64(s.bucketSeconds)

	// Clamp before materializing anything so a pathologically wide window
	// never allocates candidates it is about to discard.
	if requested := (to-from)/bs + 1; requested > int64(s.maxBuckets) {
		s.logger.Warn().
			Int64("requested_buckets", requested).
			Int("max_buckets", s.maxBuckets).
			Msg("bucket range truncated to most recent max_buckets")
		FetchesTruncated.Inc()
		from = to - int64(s.maxBuckets-1)*bs
	}

	candidates := make([]int64, 0, (to-from)/bs+1)
	for ts := from; ts <= to; ts += bs {
		candidates = append(candidates, ts)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(candidates))
	for i, ts := range candidates {
		cmds[i] = pipe.HGetAll(ctx, BucketKey(s.namespace, s.environment, ts))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		StoreErrors.WithLabelValues("fetch_range").Inc()
		return nil, storeErr("fetch_range", err)
	}

	buckets := make([]Bucket, 0, len(candidates))
	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil || len(raw) == 0 {
			continue
		}

		stats := make(map[string]float64, len(raw))
		for field, value := range raw {
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				s.logger.Debug().
					Str("field", field).
					Str("value", value).
					Msg("skipping unparsable counter value")
				continue
			}
			stats[field] = v
		}
		if len(stats) == 0 {
			continue
		}

		buckets = append(buckets, Bucket{Timestamp: candidates[i], Stats: stats})
	}

	return buckets, nil
}
