// Package keyspace classifies cache keys against the configured set of
// named key-pattern groups.
package keyspace

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/hitwatch/pkg/config"
)

// Matcher classifies a cache key against the configured keyspaces and
// memoizes the result per key. Classification is a pure function of the
// configuration's keyspace set and the key string, so memoized entries live
// for the lifetime of the configuration.
//
// The memo is keyed by a 64-bit hash of the cache key rather than the key
// itself, keeping the memory footprint fixed and small. Distinct keys
// hashing to the same slot share a (possibly wrong) cached result; at 64
// bits the collision rate is vanishingly small and the consequence is a
// misattributed keyspace count, never an error.
type Matcher struct {
	keyspaces []config.Keyspace
	memo      sync.Map // uint64 -> []int (indices into keyspaces)
	logger    zerolog.Logger
}

// NewMatcher creates a matcher over the configuration's keyspace set.
func NewMatcher(cfg *config.Config, logger zerolog.Logger) *Matcher {
	return &Matcher{
		keyspaces: cfg.Keyspaces,
		logger:    logger,
	}
}

// Matching returns the keyspaces whose pattern matches key, in registration
// order. Safe for concurrent use; concurrent first lookups of the same key
// may redundantly recompute, which is harmless and cheaper than locking the
// hot path.
func (m *Matcher) Matching(key string) []config.Keyspace {
	if len(m.keyspaces) == 0 {
		return nil
	}

	slot := xxhash.Sum64String(key)
	if cached, ok := m.memo.Load(slot); ok {
		return m.resolve(cached.([]int))
	}

	indices := make([]int, 0, len(m.keyspaces))
	for i := range m.keyspaces {
		if m.matches(&m.keyspaces[i], key) {
			indices = append(indices, i)
		}
	}

	m.memo.Store(slot, indices)
	return m.resolve(indices)
}

// resolve maps memoized indices back to keyspace values.
func (m *Matcher) resolve(indices []int) []config.Keyspace {
	if len(indices) == 0 {
		return nil
	}
	matched := make([]config.Keyspace, len(indices))
	for i, idx := range indices {
		matched[i] = m.keyspaces[idx]
	}
	return matched
}

// matches evaluates a single keyspace pattern. A panicking matcher is
// logged and treated as a non-match for that keyspace only; it never
// aborts the caller.
func (m *Matcher) matches(ks *config.Keyspace, key string) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn().
				Str("keyspace", ks.Name).
				Interface("panic", r).
				Msg("keyspace pattern evaluation failed, treating as non-match")
			matched = false
		}
	}()

	if ks.Pattern == nil {
		return false
	}
	return ks.Pattern.MatchString(key)
}
