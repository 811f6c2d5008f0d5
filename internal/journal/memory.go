package journal

import (
	"context"
	"sync"

	apperrors "hedge_advisor/pkg/errors"
)

// MemoryStore keeps the most recent entries in a fixed-size ring
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	count   int
	closed  bool
}

// NewMemoryStore creates a ring holding at most capacity entries
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryStore{entries: make([]Entry, capacity)}
}

func (s *MemoryStore) Save(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrStoreClosed
	}

	s.entries[s.next] = e
	s.next = (s.next + 1) % len(s.entries)
	if s.count < len(s.entries) {
		s.count++
	}
	return nil
}

func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, apperrors.ErrStoreClosed
	}

	if limit <= 0 || limit > s.count {
		limit = s.count
	}
	out := make([]Entry, 0, limit)
	idx := s.next
	for i := 0; i < limit; i++ {
		idx = (idx - 1 + len(s.entries)) % len(s.entries)
		out = append(out, s.entries[idx])
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
