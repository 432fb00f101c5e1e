package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu      sync.RWMutex
	pending map[uuid.UUID]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pending: make(map[uuid.UUID]time.Time)}
}

func (s *MemoryStore) Begin(_ context.Context, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = at
	return nil
}

func (s *MemoryStore) Latest(_ context.Context, now time.Time, ttl time.Duration) (*Pending, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Pending
	for userID, createdAt := range s.pending {
		p := Pending{UserID: userID, CreatedAt: createdAt}
		if p.Expired(now, ttl) {
			continue
		}
		if best == nil || createdAt.After(best.CreatedAt) {
			best = &p
		}
	}
	if best == nil {
		return nil, ErrNoPendingCheckout
	}
	return best, nil
}

func (s *MemoryStore) Consume(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, userID)
	return nil
}
