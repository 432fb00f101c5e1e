package subscription

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]Record)}
}

// Seed inserts a record directly, for test fixtures.
func (s *MemoryStore) Seed(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = rec
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) FindBySubscriptionID(_ context.Context, subscriptionID string) (*Record, error) {
	if subscriptionID == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.SubscriptionID == subscriptionID {
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SetState(_ context.Context, userID uuid.UUID, change Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[userID]
	rec.UserID = userID
	rec.Plan = change.Plan
	rec.Status = change.Status
	rec.EndsAt = change.EndsAt
	rec.SubscriptionID = change.SubscriptionID
	rec.Provider = change.Provider
	rec.CharacterSlots = change.CharacterSlots
	rec.UpdatedAt = time.Now().UTC()
	s.records[userID] = rec
	return nil
}

func (s *MemoryStore) LinkIdentity(_ context.Context, userID uuid.UUID, provider, subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return ErrNotFound
	}
	rec.Provider = provider
	rec.SubscriptionID = subscriptionID
	rec.UpdatedAt = time.Now().UTC()
	s.records[userID] = rec
	return nil
}

func (s *MemoryStore) ListLapsed(_ context.Context, now time.Time, cursor uuid.UUID, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lapsed := make([]Record, 0)
	for _, rec := range s.records {
		if rec.Lapsed(now) && bytes.Compare(rec.UserID[:], cursor[:]) > 0 {
			lapsed = append(lapsed, rec)
		}
	}
	sort.Slice(lapsed, func(i, j int) bool {
		return bytes.Compare(lapsed[i].UserID[:], lapsed[j].UserID[:]) < 0
	})
	if limit > 0 && len(lapsed) > limit {
		lapsed = lapsed[:limit]
	}
	return lapsed, nil
}
