package cache

import (
	"context"
	"time"
)

// Cache is the subset of key-value operations the services rely on.
// Redis is the only production implementation.
type Cache interface {
	BasicOps
	HashOps
	LockOps

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// BasicOps defines basic key-value operations
type BasicOps interface {
	// Get returns the value for key, or "" with a nil error when the key is missing
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// SetNX sets the value only if the key does not exist.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	Incr(ctx context.Context, key string) (int64, error)

	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL returns a negative duration when the key has no expiry or is missing
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// HashOps defines hash (map) operations
type HashOps interface {
	HSet(ctx context.Context, key, field string, value interface{}) error

	// HGet returns "" with a nil error when the field is missing
	HGet(ctx context.Context, key, field string) (string, error)

	HGetAll(ctx context.Context, key string) (map[string]string, error)

	HDel(ctx context.Context, key string, fields ...string) error
}

// LockOps defines best-effort distributed lock operations
type LockOps interface {
	// TryLock acquires the lock if nobody holds it
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock releases a lock early so another holder can take it
	Unlock(ctx context.Context, key string) error
}
