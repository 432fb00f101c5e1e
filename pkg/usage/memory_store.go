package usage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-process setups.
// All operations hold the mutex, so Incr is atomic by construction.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int64)}
}

func (s *MemoryStore) Count(_ context.Context, key Key) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[encode(key)], nil
}

func (s *MemoryStore) Incr(_ context.Context, key Key, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := encode(key)
	s.counts[k] += delta
	return s.counts[k], nil
}

func encode(key Key) string {
	return fmt.Sprintf("%s|%s|%s|%s", key.UserID, key.Day, key.Type, key.CharacterID)
}
