package cache

import (
	"context"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache error: %v", err)
	}
	defer c.Close()

	// Miss before set
	_, hit, err := c.Get(ctx, "result:abc")
	if err != nil || hit {
		t.Fatalf("expected clean miss, got hit=%v err=%v", hit, err)
	}

	// Round trip
	if err := c.Set(ctx, "result:abc", []byte("payload"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "result:abc")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !hit || string(data) != "payload" {
		t.Errorf("expected hit with payload, got hit=%v data=%q", hit, data)
	}

	// Expired entries are treated as misses
	if err := c.Set(ctx, "result:ttl", []byte("stale"), -time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	_, hit, _ = c.Get(ctx, "result:ttl")
	if hit {
		t.Error("expired entry should miss")
	}

	// Delete
	if err := c.Delete(ctx, "result:abc"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	_, hit, _ = c.Get(ctx, "result:abc")
	if hit {
		t.Error("deleted entry should miss")
	}

	// Deleting a missing key is fine
	if err := c.Delete(ctx, "result:missing"); err != nil {
		t.Errorf("Delete of missing key should not error: %v", err)
	}
}

func TestHash(t *testing.T) {
	// Test determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Test different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// Test hash length (SHA-256 produces 64 hex chars)
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	// Different options should produce different keys
	rk1 := k.ResultKey("featurehash", ResultKeyOpts{MinClearance: 2.0})
	rk2 := k.ResultKey("featurehash", ResultKeyOpts{MinClearance: 3.0})
	if rk1 == rk2 {
		t.Error("Different ResultKeyOpts should produce different keys")
	}

	// Same inputs should be stable
	if rk1 != k.ResultKey("featurehash", ResultKeyOpts{MinClearance: 2.0}) {
		t.Error("ResultKey should be deterministic")
	}

	// Depth flag participates in the key
	rk3 := k.ResultKey("featurehash", ResultKeyOpts{MinClearance: 2.0, Enable3DDepth: true})
	if rk1 == rk3 {
		t.Error("Enable3DDepth should change the key")
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "tenant:")

	key := scoped.ResultKey("h", ResultKeyOpts{})
	want := "tenant:" + inner.ResultKey("h", ResultKeyOpts{})
	if key != want {
		t.Errorf("scoped key %q, want %q", key, want)
	}

	// Nil inner falls back to the default keyer
	fallback := NewScopedKeyer(nil, "p:")
	if fallback.ResultKey("h", ResultKeyOpts{}) != "p:"+inner.ResultKey("h", ResultKeyOpts{}) {
		t.Error("nil inner should use DefaultKeyer")
	}
}
