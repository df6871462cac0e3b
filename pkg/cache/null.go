package cache

import (
	"context"
	"time"
)

// NullCache turns result caching off: every lookup misses and every store is
// discarded, so each request runs the full pipeline. Used when the operator
// disables caching, and in tests that must not reuse results.
type NullCache struct{}

// NewNullCache returns the no-op cache.
func NewNullCache() Cache {
	return &NullCache{}
}

// Get always misses.
func (c *NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set discards the result.
func (c *NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

// Delete has nothing to remove.
func (c *NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

// Close is a no-op.
func (c *NullCache) Close() error {
	return nil
}

var _ Cache = (*NullCache)(nil)
