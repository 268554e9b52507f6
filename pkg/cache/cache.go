// Package cache is the ephemeral key-value store behind presence and typing
// state. Keys carry their own TTL; sets are plain membership structures whose
// TTL covers the whole set (members are lazily evicted by callers when the
// companion key has expired).
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Set writes val under key with the given TTL (0 = no expiry).
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	// SetIfExists refreshes an existing key's value and TTL. Returns false
	// without writing when the key is absent or expired.
	SetIfExists(ctx context.Context, key, val string, ttl time.Duration) (bool, error)
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Delete removes key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	SetAdd(ctx context.Context, key, member string) error
	SetRemove(ctx context.Context, key, member string) error
	// SetMembers returns members in a stable order where the backend
	// provides one.
	SetMembers(ctx context.Context, key string) ([]string, error)
	// Expire refreshes the TTL of an existing key or set.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	HealthCheck(ctx context.Context) error
	Close() error
}
