package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileCache persists processing results on disk so repeated runs over the
// same feature batch skip the pipeline. Each result lands in its own file
// under the cache directory, wrapped with an expiry timestamp.
type FileCache struct {
	dir string
}

// NewFileCache opens a result cache rooted at dir, creating it if needed.
func NewFileCache(dir string) (Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// storedResult is the on-disk envelope around a cached processing result.
// A zero ExpiresAt means the result never expires.
type storedResult struct {
	Result    []byte    `json:"result"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Get looks up a cached result. Expired and unreadable entries are removed
// and reported as misses rather than errors.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var stored storedResult
	if err := json.Unmarshal(raw, &stored); err != nil {
		_ = os.Remove(path)
		return nil, false, nil
	}
	if !stored.ExpiresAt.IsZero() && time.Now().After(stored.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return stored.Result, true, nil
}

// Set writes a result under key. A ttl of zero stores it without expiry.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	stored := storedResult{Result: data}
	if ttl > 0 {
		stored.ExpiresAt = time.Now().Add(ttl)
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

// Delete drops the result stored under key, if any.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close is a no-op; files need no teardown.
func (c *FileCache) Close() error {
	return nil
}

// path maps a cache key to its file. Results are fanned out across
// two-character subdirectories so a long-lived cache does not pile thousands
// of files into a single directory.
func (c *FileCache) path(key string) string {
	hash := Hash([]byte(key))
	return filepath.Join(c.dir, hash[:2], hash[2:]+".json")
}

var _ Cache = (*FileCache)(nil)
