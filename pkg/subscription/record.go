package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/entitlement/pkg/entitlement"
)

// Record is the per-user subscription state.
//
// CharacterSlots is a denormalized copy of the Resolver's output, kept for
// display queries. It is recomputed on every state write, never incremented,
// and must not be trusted over a fresh Resolve.
type Record struct {
	UserID            uuid.UUID
	Plan              entitlement.Plan
	Status            entitlement.Status
	EndsAt            *time.Time
	SubscriptionID    string // provider-assigned external id, empty until linked
	Provider          string
	ProviderAccountID string // provider's own customer/account id, when known
	CharacterSlots    int
	Timezone          string // IANA zone, set at signup, immutable
	UpdatedAt         time.Time
}

// FreeRecord returns the state every user starts in.
func FreeRecord(userID uuid.UUID, timezone string, slots int) Record {
	return Record{
		UserID:         userID,
		Plan:           entitlement.PlanFree,
		Status:         entitlement.StatusFree,
		CharacterSlots: slots,
		Timezone:       timezone,
	}
}

// Lapsed reports whether a canceled subscription's grace period has ended.
func (r Record) Lapsed(now time.Time) bool {
	return r.Status == entitlement.StatusCanceled && r.EndsAt != nil && !r.EndsAt.After(now)
}

// Change is an absolute subscription-state write. Every field is written
// as-is; there are no relative updates, which is what makes replayed and
// reordered webhook deliveries safe.
type Change struct {
	Plan           entitlement.Plan
	Status         entitlement.Status
	EndsAt         *time.Time
	SubscriptionID string
	Provider       string
	CharacterSlots int
}
