package journal

import (
	"context"
	"sync"
)

// InMemory is the default journal: a bounded, newest-first ring kept in
// process memory.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
	cap     int
}

// NewInMemory creates a journal retaining at most capacity entries; a
// non-positive capacity falls back to 256.
func NewInMemory(capacity int) *InMemory {
	if capacity <= 0 {
		capacity = 256
	}
	return &InMemory{cap: capacity}
}

var _ Journal = (*InMemory)(nil)

func (j *InMemory) Record(ctx context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	if len(j.entries) > j.cap {
		j.entries = j.entries[len(j.entries)-j.cap:]
	}
	return nil
}

func (j *InMemory) Recent(ctx context.Context, limit int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if limit <= 0 || limit > len(j.entries) {
		limit = len(j.entries)
	}
	out := make([]Entry, 0, limit)
	for i := len(j.entries) - 1; i >= len(j.entries)-limit; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}
