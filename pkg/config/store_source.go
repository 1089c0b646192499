package config

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// storeSourceKind tags the variant held by a StoreSource.
type storeSourceKind int

const (
	storeSourceUnset storeSourceKind = iota
	storeSourceURL
	storeSourceClient
	storeSourceFactory
)

// StoreSource describes how the bucket store obtains its Redis client.
// Exactly one of three variants is held: a connection URL, a pre-built
// client, or a factory function. The variant is resolved once at startup
// into a concrete client handle.
type StoreSource struct {
	kind    storeSourceKind
	url     string
	client  *redis.Client
	factory func() (*redis.Client, error)
}

// StoreURL configures the store from a Redis connection URL
// (e.g. "redis://localhost:6379/0").
func StoreURL(url string) StoreSource {
	return StoreSource{kind: storeSourceURL, url: url}
}

// StoreClient configures the store with a pre-built Redis client. The pool
// size of the supplied client is left untouched.
func StoreClient(client *redis.Client) StoreSource {
	return StoreSource{kind: storeSourceClient, client: client}
}

// StoreFactory configures the store with a factory invoked once at startup.
func StoreFactory(factory func() (*redis.Client, error)) StoreSource {
	return StoreSource{kind: storeSourceFactory, factory: factory}
}

// Resolve produces the concrete Redis client for this source. For URL
// sources the connection pool is bounded by poolSize.
func (s StoreSource) Resolve(poolSize int) (*redis.Client, error) {
	switch s.kind {
	case storeSourceURL:
		opts, err := redis.ParseURL(s.url)
		if err != nil {
			return nil, &ConfigError{Field: "store", Reason: fmt.Sprintf("invalid Redis URL: %v", err)}
		}
		opts.PoolSize = poolSize
		return redis.NewClient(opts), nil
	case storeSourceClient:
		if s.client == nil {
			return nil, &ConfigError{Field: "store", Reason: "store client is nil"}
		}
		return s.client, nil
	case storeSourceFactory:
		if s.factory == nil {
			return nil, &ConfigError{Field: "store", Reason: "store factory is nil"}
		}
		client, err := s.factory()
		if err != nil {
			return nil, fmt.Errorf("store factory: %w", err)
		}
		if client == nil {
			return nil, &ConfigError{Field: "store", Reason: "store factory returned nil client"}
		}
		return client, nil
	default:
		return nil, &ConfigError{Field: "store", Reason: "no store source configured"}
	}
}
