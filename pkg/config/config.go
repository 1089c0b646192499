// Package config holds the telemetry configuration shared by all hitwatch
// components. A Config is constructed explicitly, validated once, and treated
// as read-only afterwards — there is no hidden process-wide default.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Default values applied by DefaultConfig.
const (
	DefaultBucketSeconds    = 300    // 5 minute buckets
	DefaultRetentionSeconds = 604800 // 7 days
	DefaultSampleRate       = 1.0
	DefaultMaxBuckets       = 288
	DefaultRedisPoolSize    = 5
	DefaultNamespace        = "hitwatch"
	DefaultEnvironment      = "production"
)

// Config is the process-wide telemetry configuration. Mutate it only during
// setup; once handed to a component it must be treated as immutable.
type Config struct {
	// Enabled controls whether the instrumentation hook installs at all.
	Enabled bool

	// BucketSeconds is the width of a counter bucket in seconds.
	BucketSeconds int

	// RetentionSeconds is how long bucket keys live after their last write.
	RetentionSeconds int

	// SampleRate is the per-event keep probability in [0.0, 1.0].
	// At 1.0 every event is recorded; below 1.0 counts are statistical.
	SampleRate float64

	// UseDeferredFlush batches increments per request and writes them once
	// at end-of-request instead of per event.
	UseDeferredFlush bool

	// MaxBuckets caps how many bucket keys a single range fetch may touch.
	MaxBuckets int

	// RedisPoolSize bounds the Redis connection pool.
	RedisPoolSize int

	// Namespace and Environment scope every Redis key so that multiple
	// deployments never collide.
	Namespace   string
	Environment string

	// KeyFields lists the event payload fields consulted, in priority
	// order, to extract the accessed cache key. Different instrumentation
	// producers populate different fields; registering a field name here
	// is how a new producer shape is supported.
	KeyFields []string

	// Store describes how to obtain the Redis client backing the
	// bucket store.
	Store StoreSource

	// Keyspaces are the registered key-pattern groups, in registration
	// order.
	Keyspaces []Keyspace
}

// DefaultConfig returns a configuration with safe defaults and no keyspaces.
func DefaultConfig() *Config {
	return &Config{
		Enabled:          true,
		BucketSeconds:    DefaultBucketSeconds,
		RetentionSeconds: DefaultRetentionSeconds,
		SampleRate:       DefaultSampleRate,
		MaxBuckets:       DefaultMaxBuckets,
		RedisPoolSize:    DefaultRedisPoolSize,
		Namespace:        DefaultNamespace,
		Environment:      DefaultEnvironment,
		KeyFields:        []string{"key", "name"},
	}
}

// RegisterKeyspace adds a named key-pattern group. The name must be unique,
// the pattern must be a valid regular expression. An empty label defaults to
// a humanized form of the name.
func (c *Config) RegisterKeyspace(name, label, pattern string) error {
	if name == "" {
		return &ConfigError{Field: "keyspace.name", Reason: "must not be empty"}
	}
	if pattern == "" {
		return &ConfigError{Field: "keyspace.pattern", Reason: fmt.Sprintf("keyspace %q requires a pattern", name)}
	}
	for _, ks := range c.Keyspaces {
		if ks.Name == name {
			return &ConfigError{Field: "keyspace.name", Reason: fmt.Sprintf("keyspace %q already registered", name)}
		}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return &ConfigError{
			Field:  "keyspace.pattern",
			Reason: fmt.Sprintf("keyspace %q pattern does not compile: %v", name, err),
		}
	}

	if label == "" {
		label = humanize(name)
	}

	c.Keyspaces = append(c.Keyspaces, Keyspace{
		Name:    name,
		Label:   label,
		Pattern: re,
	})
	return nil
}

// Validate checks the configuration and returns a *ConfigError describing the
// first problem found. Validation failures are fatal for the caller; runtime
// components assume a validated config.
func (c *Config) Validate() error {
	if c.BucketSeconds <= 0 {
		return &ConfigError{Field: "bucket_seconds", Reason: "must be > 0"}
	}
	if c.RetentionSeconds <= 0 {
		return &ConfigError{Field: "retention_seconds", Reason: "must be > 0"}
	}
	if c.SampleRate < 0.0 || c.SampleRate > 1.0 {
		return &ConfigError{Field: "sample_rate", Reason: "must be within [0.0, 1.0]"}
	}
	if c.MaxBuckets <= 0 {
		return &ConfigError{Field: "max_buckets", Reason: "must be > 0"}
	}
	if c.RedisPoolSize <= 0 {
		return &ConfigError{Field: "redis_pool_size", Reason: "must be > 0"}
	}
	if c.Namespace == "" {
		return &ConfigError{Field: "namespace", Reason: "must not be empty"}
	}
	if c.Environment == "" {
		return &ConfigError{Field: "environment", Reason: "must not be empty"}
	}
	if len(c.KeyFields) == 0 {
		return &ConfigError{Field: "key_fields", Reason: "at least one payload key field is required"}
	}
	if c.Store.kind == storeSourceUnset {
		return &ConfigError{Field: "store", Reason: "a store source is required (URL, client, or factory)"}
	}

	// A retention that is not a whole number of buckets means the tail
	// bucket is partially retained before expiry. Worth knowing, not worth
	// failing over.
	if c.RetentionSeconds%c.BucketSeconds != 0 {
		log.Warn().
			Int("retention_seconds", c.RetentionSeconds).
			Int("bucket_seconds", c.BucketSeconds).
			Msg("retention is not a multiple of bucket width; tail bucket will be partially retained")
	}

	return nil
}

// humanize converts a symbolic keyspace name into a display label,
// e.g. "user_profiles" -> "User profiles".
func humanize(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
