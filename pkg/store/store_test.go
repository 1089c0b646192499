package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/hitwatch/internal/testutil"
	"github.com/Sternrassler/hitwatch/pkg/config"
)

func newTestStore(t *testing.T) (*Store, *redis.Client, *config.Config) {
	t.Helper()

	_, client := testutil.NewRedis(t)
	cfg := testutil.NewConfig(t, client)
	return NewWithClient(client, cfg, zerolog.Nop()), client, cfg
}

func TestIncrement_CreatesBucket(t *testing.T) {
	s, client, cfg := newTestStore(t)
	ctx := context.Background()

	ts := Align(time.Now().Unix(), cfg.BucketSeconds)
	err := s.Increment(ctx, ts, map[string]float64{
		FieldOverallHits: 1,
		"users:hits":     1,
	})
	require.NoError(t, err)

	key := BucketKey(cfg.Namespace, cfg.Environment, ts)
	vals, err := client.HGetAll(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "1", vals[FieldOverallHits])
	assert.Equal(t, "1", vals["users:hits"])

	// The bucket carries the retention TTL.
	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(cfg.RetentionSeconds)*time.Second, ttl)
}

func TestIncrement_Accumulates(t *testing.T) {
	s, client, cfg := newTestStore(t)
	ctx := context.Background()

	ts := int64(1700000100)
	require.NoError(t, s.Increment(ctx, ts, map[string]float64{FieldOverallHits: 1}))
	require.NoError(t, s.Increment(ctx, ts, map[string]float64{FieldOverallHits: 2.5, FieldOverallMisses: 1}))

	key := BucketKey(cfg.Namespace, cfg.Environment, ts)
	hits, err := client.HGet(ctx, key, FieldOverallHits).Float64()
	require.NoError(t, err)
	assert.Equal(t, 3.5, hits)

	misses, err := client.HGet(ctx, key, FieldOverallMisses).Float64()
	require.NoError(t, err)
	assert.Equal(t, 1.0, misses)
}

func TestIncrement_NeverShortensTTL(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	cfg := testutil.NewConfig(t, client)
	s := NewWithClient(client, cfg, zerolog.Nop())
	ctx := context.Background()

	ts := int64(1700000100)
	key := BucketKey(cfg.Namespace, cfg.Environment, ts)

	require.NoError(t, s.Increment(ctx, ts, map[string]float64{FieldOverallHits: 1}))

	// Simulate an existing TTL longer than retention.
	longer := time.Duration(cfg.RetentionSeconds+1000) * time.Second
	mr.SetTTL(key, longer)

	require.NoError(t, s.Increment(ctx, ts, map[string]float64{FieldOverallHits: 1}))

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, longer, ttl, "increment must not shorten an existing longer TTL")
}

func TestIncrement_EmptyMap(t *testing.T) {
	s, client, cfg := newTestStore(t)
	ctx := context.Background()

	ts := int64(1700000100)
	require.NoError(t, s.Increment(ctx, ts, nil))

	exists, err := client.Exists(ctx, BucketKey(cfg.Namespace, cfg.Environment, ts)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "empty increment must not create a bucket")
}

func TestIncrement_ConcurrentNoLostUpdates(t *testing.T) {
	s, client, cfg := newTestStore(t)
	ctx := context.Background()

	ts := int64(1700000100)
	const goroutines = 16
	const perGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if err := s.Increment(ctx, ts, map[string]float64{FieldOverallHits: 1}); err != nil {
					t.Errorf("Increment failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	key := BucketKey(cfg.Namespace, cfg.Environment, ts)
	hits, err := client.HGet(ctx, key, FieldOverallHits).Float64()
	require.NoError(t, err)
	assert.Equal(t, float64(goroutines*perGoroutine), hits, "concurrent increments must sum exactly")
}

func TestIncrement_StoreError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Environment = "test"
	dead := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	defer dead.Close()
	cfg.Store = config.StoreClient(dead)

	s := NewWithClient(dead, cfg, zerolog.Nop())
	err := s.Increment(context.Background(), 1700000100, map[string]float64{FieldOverallHits: 1})

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "increment", serr.Op)
}

func TestFetchRange(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	t0 := int64(1700000100) // aligned to 300
	t1 := t0 + 300
	require.NoError(t, s.Increment(ctx, t0, map[string]float64{FieldOverallHits: 2}))
	require.NoError(t, s.Increment(ctx, t1, map[string]float64{FieldOverallMisses: 1}))

	// Range spanning exactly one bucket boundary returns both buckets,
	// ascending by timestamp.
	buckets, err := s.FetchRange(ctx, t0+10, t1+10)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, t0, buckets[0].Timestamp)
	assert.Equal(t, t1, buckets[1].Timestamp)
	assert.Equal(t, 2.0, buckets[0].Stats[FieldOverallHits])
	assert.Equal(t, 1.0, buckets[1].Stats[FieldOverallMisses])

	// Empty buckets inside the range are omitted.
	buckets, err = s.FetchRange(ctx, t0, t1+900)
	require.NoError(t, err)
	assert.Len(t, buckets, 2)
}

func TestFetchRange_BeforeAnyData(t *testing.T) {
	s, _, _ := newTestStore(t)

	buckets, err := s.FetchRange(context.Background(), 1600000000, 1600003600)
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestFetchRange_InvertedRange(t *testing.T) {
	s, _, _ := newTestStore(t)

	buckets, err := s.FetchRange(context.Background(), 1700000400, 1700000100)
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestFetchRange_TruncatesToMaxBuckets(t *testing.T) {
	_, client := testutil.NewRedis(t)
	cfg := testutil.NewConfig(t, client)
	cfg.MaxBuckets = 3
	s := NewWithClient(client, cfg, zerolog.Nop())
	ctx := context.Background()

	// Ten candidate boundaries, data in the first and the last.
	from := int64(1700000100)
	to := from + 9*300
	require.NoError(t, s.Increment(ctx, from, map[string]float64{FieldOverallHits: 1}))
	require.NoError(t, s.Increment(ctx, to, map[string]float64{FieldOverallHits: 1}))

	buckets, err := s.FetchRange(ctx, from, to)
	require.NoError(t, err)

	// Only the most recent 3 boundaries were consulted: the oldest bucket
	// falls outside the truncated candidate set.
	require.Len(t, buckets, 1)
	assert.Equal(t, to, buckets[0].Timestamp)
}

func TestFetchRange_WideWindowClampedBeforeFetch(t *testing.T) {
	_, client := testutil.NewRedis(t)
	cfg := testutil.NewConfig(t, client)
	cfg.MaxBuckets = 3
	s := NewWithClient(client, cfg, zerolog.Nop())
	ctx := context.Background()

	// A window reaching back to the epoch spans millions of boundaries;
	// only the most recent max_buckets may be consulted.
	to := int64(1700000100)
	outside := to - 3*300
	require.NoError(t, s.Increment(ctx, to, map[string]float64{FieldOverallHits: 1}))
	require.NoError(t, s.Increment(ctx, outside, map[string]float64{FieldOverallHits: 1}))

	buckets, err := s.FetchRange(ctx, 0, to)
	require.NoError(t, err)

	require.Len(t, buckets, 1)
	assert.Equal(t, to, buckets[0].Timestamp)
}

func TestMetadata_RoundTrip(t *testing.T) {
	s, _, cfg := newTestStore(t)
	ctx := context.Background()

	meta, err := s.FetchMetadata(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta, "no metadata stored yet")

	require.NoError(t, s.StoreMetadata(ctx))

	meta, err = s.FetchMetadata(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, cfg.BucketSeconds, meta.BucketSeconds)
	assert.Equal(t, cfg.RetentionSeconds, meta.RetentionSeconds)
	assert.WithinDuration(t, time.Now(), meta.UpdatedAt, time.Minute)
}

func TestStoreMetadata_NeverShortensTTL(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	cfg := testutil.NewConfig(t, client)
	s := NewWithClient(client, cfg, zerolog.Nop())
	ctx := context.Background()

	key := MetadataKey(cfg.Namespace, cfg.Environment)

	require.NoError(t, s.StoreMetadata(ctx))

	ttl, err := client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(cfg.RetentionSeconds)*time.Second, ttl)

	// Same policy as the buckets: a longer existing TTL survives a rewrite.
	longer := time.Duration(cfg.RetentionSeconds+1000) * time.Second
	mr.SetTTL(key, longer)

	require.NoError(t, s.StoreMetadata(ctx))

	ttl, err = client.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, longer, ttl, "metadata rewrite must not shorten an existing longer TTL")
}

func TestEstimateSize(t *testing.T) {
	s, _, _ := newTestStore(t)

	// retention 3600 / bucket 300 = 12 buckets; 2 keyspaces ->
	// 2 + 2*2 = 6 fields per bucket.
	est := s.EstimateSize()
	assert.Equal(t, 12, est.MaxBuckets)
	assert.Equal(t, 6, est.FieldsPerBucket)
	assert.Equal(t, int64(6*52+141), est.BytesPerBucket)
	assert.Equal(t, int64(12*(6*52+141)+200), est.TotalBytes)
	assert.NotEmpty(t, est.HumanReadable)
}

func TestEstimateSize_Degenerate(t *testing.T) {
	s := &Store{bucketSeconds: 0, retentionSeconds: 0}
	est := s.EstimateSize()
	assert.Zero(t, est.TotalBytes)
	assert.Equal(t, "unknown", est.HumanReadable)
}

func TestPrune(t *testing.T) {
	s, client, cfg := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	freshTS := Align(now.Unix(), cfg.BucketSeconds)
	staleTS := now.Unix() - int64(cfg.RetentionSeconds) - 600

	require.NoError(t, s.Increment(ctx, freshTS, map[string]float64{FieldOverallHits: 1}))
	require.NoError(t, s.Increment(ctx, staleTS, map[string]float64{FieldOverallHits: 1}))
	require.NoError(t, s.StoreMetadata(ctx))

	deleted, err := s.Prune(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	exists, err := client.Exists(ctx,
		BucketKey(cfg.Namespace, cfg.Environment, freshTS),
		MetadataKey(cfg.Namespace, cfg.Environment),
	).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), exists, "fresh bucket and metadata must survive prune")

	exists, err = client.Exists(ctx, BucketKey(cfg.Namespace, cfg.Environment, staleTS)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "stale bucket must be deleted")
}

func TestStoreError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := storeErr("increment", inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "increment")
}
