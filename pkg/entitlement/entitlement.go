package entitlement

import "time"

// Entitlement is the set of capabilities derived from subscription state.
type Entitlement struct {
	Slots   int  // number of character slots the user may occupy
	Premium bool // premium features (scene generation, larger quotas)
}

// Config controls how many slots each tier grants.
// Slot counts are deployment configuration, not engine constants.
type Config struct {
	FreeSlots    int `env:"ENTITLEMENT_FREE_SLOTS" envDefault:"1"`
	PremiumSlots int `env:"ENTITLEMENT_PREMIUM_SLOTS" envDefault:"3"`
}

// DefaultConfig returns the standard slot allocation.
func DefaultConfig() Config {
	return Config{FreeSlots: 1, PremiumSlots: 3}
}

// Resolver maps subscription state to an Entitlement.
// The zero value is not usable; construct with NewResolver.
type Resolver struct {
	cfg Config
}

// NewResolver creates a Resolver with the given slot configuration.
// Non-positive slot counts fall back to the defaults to keep a
// misconfigured deployment from zeroing out everyone's access.
func NewResolver(cfg Config) *Resolver {
	def := DefaultConfig()
	if cfg.FreeSlots <= 0 {
		cfg.FreeSlots = def.FreeSlots
	}
	if cfg.PremiumSlots <= 0 {
		cfg.PremiumSlots = def.PremiumSlots
	}
	return &Resolver{cfg: cfg}
}

// Resolve derives the entitlement for a subscription state at a given instant.
//
// Premium holds iff the plan is a paid tier and either the subscription is
// active, or it is canceled but the paid period has not yet elapsed (the
// grace period). A canceled subscription with a nil end instant grants no
// premium access: without a known period end there is nothing to honor.
func (r *Resolver) Resolve(plan Plan, status Status, endsAt *time.Time, now time.Time) Entitlement {
	premium := plan.IsPaid() && (status == StatusActive ||
		(status == StatusCanceled && endsAt != nil && endsAt.After(now)))

	slots := r.cfg.FreeSlots
	if premium {
		slots = r.cfg.PremiumSlots
	}

	return Entitlement{Slots: slots, Premium: premium}
}
