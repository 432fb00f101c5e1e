package character

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/storyloom/entitlement/pkg/entitlement"
)

// EntitlementSource resolves the user's current entitlement. Implemented by
// the subscription service; recomputed on every access check because the
// resolver is pure and cheap, so there is no cached value to go stale.
type EntitlementSource interface {
	Entitlement(ctx context.Context, userID uuid.UUID) (entitlement.Entitlement, error)
}

// Service is the character access controller.
type Service struct {
	store Store
	ents  EntitlementSource
}

// NewService creates the access controller.
// Panics on nil dependencies to fail fast during initialization.
func NewService(store Store, ents EntitlementSource) *Service {
	if store == nil {
		panic("character: Store is required")
	}
	if ents == nil {
		panic("character: EntitlementSource is required")
	}
	return &Service{store: store, ents: ents}
}

// Access splits the user's characters into accessible and locked by
// creation order: the oldest slot-count characters are accessible.
func (s *Service) Access(ctx context.Context, userID uuid.UUID) (*Access, error) {
	chars, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("character: list: %w", err)
	}
	ent, err := s.ents.Entitlement(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("character: resolve entitlement: %w", err)
	}
	activeID, err := s.store.ActiveID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("character: active id: %w", err)
	}

	cut := min(ent.Slots, len(chars))
	return &Access{
		Accessible: chars[:cut],
		Locked:     chars[cut:],
		ActiveID:   activeID,
	}, nil
}

// CanAccess reports whether the character is within the accessible set.
func (s *Service) CanAccess(ctx context.Context, userID, characterID uuid.UUID) (bool, error) {
	access, err := s.Access(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(access.Accessible, func(c Character) bool {
		return c.ID == characterID
	}), nil
}

// SwitchActive makes the character the user's active one.
// Returns ErrCharacterLocked when the target is outside the accessible set
// and ErrCharacterNotFound when the user does not own it.
func (s *Service) SwitchActive(ctx context.Context, userID, characterID uuid.UUID) error {
	access, err := s.Access(ctx, userID)
	if err != nil {
		return err
	}

	if slices.ContainsFunc(access.Locked, func(c Character) bool { return c.ID == characterID }) {
		return ErrCharacterLocked
	}
	if !slices.ContainsFunc(access.Accessible, func(c Character) bool { return c.ID == characterID }) {
		return ErrCharacterNotFound
	}

	return s.store.SetActive(ctx, userID, characterID)
}

// Remove deletes a character and, if it was active, promotes a sibling:
// the one immediately older in creation order, or the immediately newer one
// when the deleted character was the oldest, or nobody when none remain.
// Jumping to an adjacent character rather than the newest or oldest keeps
// the user close to the story they were working in.
func (s *Service) Remove(ctx context.Context, userID, characterID uuid.UUID) error {
	chars, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("character: list: %w", err)
	}
	idx := slices.IndexFunc(chars, func(c Character) bool { return c.ID == characterID })
	if idx < 0 {
		return ErrCharacterNotFound
	}

	activeID, err := s.store.ActiveID(ctx, userID)
	if err != nil {
		return fmt.Errorf("character: active id: %w", err)
	}

	if err := s.store.Delete(ctx, userID, characterID); err != nil {
		return err
	}
	if activeID != characterID {
		return nil
	}

	remaining := slices.Delete(slices.Clone(chars), idx, idx+1)
	replacement := adjacentSibling(remaining, idx)
	return s.store.SetActive(ctx, userID, replacement)
}

// EnforceSlotLimit revalidates the active pointer after a downgrade. Excess
// characters simply become locked, nothing is deleted, but an active
// character that fell outside the slot range must hand off to an accessible
// sibling, using the same adjacency preference as deletion.
func (s *Service) EnforceSlotLimit(ctx context.Context, userID uuid.UUID) error {
	access, err := s.Access(ctx, userID)
	if err != nil {
		return err
	}
	if access.ActiveID == uuid.Nil {
		return nil
	}
	if !slices.ContainsFunc(access.Locked, func(c Character) bool { return c.ID == access.ActiveID }) {
		return nil
	}

	// The locked active character sits past the accessible range, so its
	// nearest older accessible sibling is the last accessible one.
	replacement := adjacentSibling(access.Accessible, len(access.Accessible))
	return s.store.SetActive(ctx, userID, replacement)
}

// adjacentSibling picks the replacement for a character removed at
// removedIdx from its former position in the creation-ordered remainder:
// the previous (older) sibling when one exists, otherwise the one that
// moved into the removed slot, otherwise nobody.
func adjacentSibling(remaining []Character, removedIdx int) uuid.UUID {
	if len(remaining) == 0 {
		return uuid.Nil
	}
	if removedIdx > 0 {
		return remaining[removedIdx-1].ID
	}
	return remaining[0].ID
}
