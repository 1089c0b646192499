// Package testutil provides shared test infrastructure for hitwatch unit
// tests. Unit tests run against miniredis (in-memory); the integration suite
// under tests/integration uses testcontainers-go with a real Redis.
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/hitwatch/pkg/config"
)

// NewRedis starts an in-memory Redis and returns it with a connected client.
// Both are torn down with the test.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

// NewConfig returns a validated test configuration wired to the given
// client, with small buckets and a "users" / "sessions" keyspace pair.
func NewConfig(t *testing.T, client *redis.Client) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.BucketSeconds = 300
	cfg.RetentionSeconds = 3600
	cfg.Environment = "test"
	cfg.Store = config.StoreClient(client)

	if err := cfg.RegisterKeyspace("users", "", `^users?:`); err != nil {
		t.Fatalf("RegisterKeyspace failed: %v", err)
	}
	if err := cfg.RegisterKeyspace("sessions", "", `^session:`); err != nil {
		t.Fatalf("RegisterKeyspace failed: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Test config invalid: %v", err)
	}

	return cfg
}
