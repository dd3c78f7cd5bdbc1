// Package kv provides a small key-value abstraction used for refresh token
// storage. Backends are swappable (Redis in production, fakes in tests)
// without touching the auth service.
package kv

import (
	"context"
	"time"
)

// Store defines a minimal key-value interface with per-key TTL.
type Store interface {
	// Set stores a value with the given key and TTL.
	// A TTL of 0 means the key does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value by key. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key. Returns nil if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Close closes the connection to the store.
	Close() error
}
