package history

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds the in-memory store.
const DefaultMemoryCapacity = 100

// MemoryStore keeps the most recent records in memory.
// Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	records  []Record
	capacity int
}

// NewMemoryStore creates a bounded in-memory store. A non-positive capacity
// uses the default.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// Append saves a record, evicting the oldest once capacity is reached.
func (s *MemoryStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if len(s.records) > s.capacity {
		s.records = s.records[len(s.records)-s.capacity:]
	}
	return nil
}

// List returns the newest records first.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Close does nothing for the memory store.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
