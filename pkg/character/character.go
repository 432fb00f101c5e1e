package character

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrCharacterNotFound means the character does not exist or belongs to
	// another user.
	ErrCharacterNotFound = errors.New("character: not found")

	// ErrCharacterLocked is the user-facing denial for operating on a
	// character outside the accessible slot range. A domain result, not an
	// internal failure.
	ErrCharacterLocked = errors.New("character: locked by slot limit")
)

// Character is one of a user's story protagonists. CreatedAt ascending
// defines slot priority: older characters win accessible slots first.
type Character struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Access is the derived accessible/locked split for a user.
type Access struct {
	Accessible []Character
	Locked     []Character
	ActiveID   uuid.UUID // uuid.Nil when the user has no active character
}

// Store persists characters and the per-user active pointer.
type Store interface {
	// ListByUser returns the user's characters ordered by CreatedAt
	// ascending, oldest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Character, error)

	// ActiveID returns the user's active character id, or uuid.Nil.
	ActiveID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)

	// SetActive points the user at a character; uuid.Nil clears it.
	// Implementations guarantee at most one active character per user.
	SetActive(ctx context.Context, userID, characterID uuid.UUID) error

	// Delete removes a character. Deleting a missing character returns
	// ErrCharacterNotFound.
	Delete(ctx context.Context, userID, characterID uuid.UUID) error
}
