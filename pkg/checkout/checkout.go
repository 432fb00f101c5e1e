// Package checkout bridges anonymous payment-provider checkout sessions
// back to the user who started them.
//
// Some providers (FastSpring in particular) deliver subscription webhooks
// with no user reference at all. The bridge records "user U started a
// checkout at T" when the checkout begins; a webhook arriving shortly after
// with no other identity claims the freshest non-expired record.
//
// Records are persisted rather than held in a process-local map so the
// bridge survives restarts and works across multiple instances. Expiry is
// enforced at read time: a row older than the TTL is ignored even if a
// cleanup pass has not deleted it yet.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a pending checkout may bridge a webhook.
// Long enough to cover a normal payment flow, short enough that a stale
// record cannot claim an unrelated subscription.
const DefaultTTL = 5 * time.Minute

var (
	// ErrNoPendingCheckout means no non-expired record exists.
	ErrNoPendingCheckout = errors.New("checkout: no pending checkout")
)

// Pending records that a user initiated a provider checkout.
type Pending struct {
	UserID    uuid.UUID
	CreatedAt time.Time
}

// Expired reports whether the record is past the bridge TTL at the given instant.
func (p Pending) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}

// Store persists pending checkouts.
//
// Begin creates or refreshes the record for a user (a second checkout start
// replaces the first). Latest returns the freshest record younger than the
// TTL, or ErrNoPendingCheckout. Consume deletes a record after a webhook
// claims it; deleting an already-gone record is a no-op.
type Store interface {
	Begin(ctx context.Context, userID uuid.UUID, at time.Time) error
	Latest(ctx context.Context, now time.Time, ttl time.Duration) (*Pending, error)
	Consume(ctx context.Context, userID uuid.UUID) error
}
