package character

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and single-process setups.
type MemoryStore struct {
	mu     sync.RWMutex
	chars  map[uuid.UUID][]Character // per user, kept sorted by CreatedAt
	active map[uuid.UUID]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chars:  make(map[uuid.UUID][]Character),
		active: make(map[uuid.UUID]uuid.UUID),
	}
}

// Add inserts a character, keeping the user's list in creation order.
func (s *MemoryStore) Add(c Character) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.chars[c.UserID], c)
	slices.SortFunc(list, func(a, b Character) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	s.chars[c.UserID] = list
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID) ([]Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chars[userID]), nil
}

func (s *MemoryStore) ActiveID(_ context.Context, userID uuid.UUID) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[userID], nil
}

func (s *MemoryStore) SetActive(_ context.Context, userID, characterID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if characterID == uuid.Nil {
		delete(s.active, userID)
		return nil
	}
	s.active[userID] = characterID
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID, characterID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.chars[userID]
	idx := slices.IndexFunc(list, func(c Character) bool { return c.ID == characterID })
	if idx < 0 {
		return ErrCharacterNotFound
	}
	s.chars[userID] = slices.Delete(list, idx, idx+1)
	return nil
}
