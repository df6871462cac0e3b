// Package cache provides result caching for processing requests.
//
// Processing is deterministic: the same feature set and options always
// produce the same result, so responses can be cached by a content hash of
// the request. Three backends are provided:
//
//   - FileCache for CLI usage (entries on disk, survive restarts)
//   - RedisCache for server deployments (shared across instances)
//   - NullCache to disable caching
//
// Keys are built by a [Keyer] so key layout stays in one place.
package cache

import (
	"context"
	"time"
)

// Cache is the storage interface shared by all backends.
//
// Get returns (data, true, nil) on a hit and (nil, false, nil) on a miss;
// errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ResultKeyOpts captures the options that change a processing result and
// therefore belong in the cache key.
type ResultKeyOpts struct {
	MinClearance    float64
	ForceStrength   float64
	AngleThreshold  float64
	SnapTolerance   float64
	MaxDisplacement float64
	Enable3DDepth   bool
}

// Keyer generates cache keys.
type Keyer interface {
	// ResultKey builds the key for a processing result, from a content hash
	// of the submitted features and the options that affect the output.
	ResultKey(featuresHash string, opts ResultKeyOpts) string
}

// DefaultKeyer is the standard key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ResultKey generates a key of the form "result:<sha256>".
func (k *DefaultKeyer) ResultKey(featuresHash string, opts ResultKeyOpts) string {
	return hashKey("result", featuresHash, opts)
}

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation, e.g. to
// keep results from different deployments apart in a shared Redis.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ResultKey generates a prefixed result key.
func (k *ScopedKeyer) ResultKey(featuresHash string, opts ResultKeyOpts) string {
	return k.prefix + k.inner.ResultKey(featuresHash, opts)
}
