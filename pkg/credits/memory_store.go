package credits

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and single-process setups.
// The mutex makes every operation atomic, matching the conditional-update
// semantics the postgres store gets from single-statement writes.
type MemoryStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[uuid.UUID]State)}
}

// Seed inserts a state directly, for test fixtures.
func (s *MemoryStore) Seed(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[state.UserID] = state
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &state, nil
}

func (s *MemoryStore) Debit(_ context.Context, userID uuid.UUID, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.users[userID]
	if !ok {
		return 0, ErrNotFound
	}
	if state.Balance < amount {
		return state.Balance, ErrInsufficientCredits
	}
	state.Balance -= amount
	s.users[userID] = state
	return state.Balance, nil
}

func (s *MemoryStore) Add(_ context.Context, userID uuid.UUID, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.users[userID]
	if !ok {
		return 0, ErrNotFound
	}
	state.Balance += amount
	s.users[userID] = state
	return state.Balance, nil
}

func (s *MemoryStore) Recharge(_ context.Context, userID uuid.UUID, prev *time.Time, amount, cap int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.users[userID]
	if !ok {
		return false, ErrNotFound
	}
	if !equalInstant(state.RechargedAt, prev) {
		return false, nil
	}
	// Top up to at most the cap; a balance already at or above the cap only
	// advances the recharge marker.
	state.Balance = min(state.Balance+amount, max(state.Balance, cap))
	at = at.UTC()
	state.RechargedAt = &at
	s.users[userID] = state
	return true, nil
}

func (s *MemoryStore) MarkStarterKit(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	state.HasStarterKit = true
	s.users[userID] = state
	return nil
}

func (s *MemoryStore) List(_ context.Context, cursor uuid.UUID, limit int) ([]State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := make([]State, 0, len(s.users))
	for _, state := range s.users {
		if bytes.Compare(state.UserID[:], cursor[:]) > 0 {
			states = append(states, state)
		}
	}
	sort.Slice(states, func(i, j int) bool {
		return bytes.Compare(states[i].UserID[:], states[j].UserID[:]) < 0
	})
	if limit > 0 && len(states) > limit {
		states = states[:limit]
	}
	return states, nil
}

func equalInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
