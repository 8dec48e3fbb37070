// Package cache defines the key-value cache capability used by the
// aggregation read path. The cache holds derived, time-boxed copies of
// query results only; it is never a source of truth, and callers must
// treat every cache failure as a miss.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a key-value store with per-entry expiry.
type Cache interface {
	// Get returns the value stored under key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
