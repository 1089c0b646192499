package store

import (
	"context"
	"time"
)

// pruneBatchSize bounds how many keys one DEL round trip removes.
const pruneBatchSize = 100

// Prune deletes every bucket key in this environment's namespace whose
// embedded timestamp is older than now minus the retention period, and
// returns the number of keys deleted. Redis expires buckets on its own;
// Prune exists for operators who shrink the retention window and want the
// excess gone immediately.
func (s *Store) Prune(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Unix() - int64(s.retentionSeconds)

	var stale []string
	iter := s.client.Scan(ctx, 0, s.KeyPrefix()+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ts, ok := TimestampFromKey(key)
		if !ok {
			// Metadata key or foreign key under our prefix.
			continue
		}
		if ts < cutoff {
			stale = append(stale, key)
		}
	}
	if err := iter.Err(); err != nil {
		StoreErrors.WithLabelValues("prune").Inc()
		return 0, storeErr("prune", err)
	}

	deleted := 0
	for len(stale) > 0 {
		batch := stale
		if len(batch) > pruneBatchSize {
			batch = batch[:pruneBatchSize]
		}
		stale = stale[len(batch):]

		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			StoreErrors.WithLabelValues("prune").Inc()
			return deleted, storeErr("prune", err)
		}
		deleted += int(n)
	}

	if deleted > 0 {
		BucketsPruned.Add(float64(deleted))
		s.logger.Info().
			Int("deleted", deleted).
			Int64("cutoff", cutoff).
			Msg("pruned stale bucket keys")
	}

	return deleted, nil
}
