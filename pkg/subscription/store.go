package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists subscription state. Implementations must make SetState a
// single atomic write so concurrent webhook deliveries are last-write-wins
// on the whole state, never a field-level interleaving.
type Store interface {
	// Get returns the record for a user, or ErrNotFound.
	Get(ctx context.Context, userID uuid.UUID) (*Record, error)

	// FindBySubscriptionID returns the record already linked to an external
	// subscription id, or ErrNotFound.
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*Record, error)

	// SetState writes the full subscription state for a user.
	SetState(ctx context.Context, userID uuid.UUID, change Change) error

	// LinkIdentity fills the provider identity fields only, leaving
	// plan/status untouched. Used by the link flow once it has established
	// that a webhook already progressed the state.
	LinkIdentity(ctx context.Context, userID uuid.UUID, provider, subscriptionID string) error

	// ListLapsed pages through canceled records whose grace period ended at
	// or before now, in stable user-id order starting after the cursor.
	// Returns at most limit records; an empty page means done.
	ListLapsed(ctx context.Context, now time.Time, cursor uuid.UUID, limit int) ([]Record, error)
}
