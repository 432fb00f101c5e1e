package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/entitlement/pkg/billing"
	"github.com/storyloom/entitlement/pkg/checkout"
	"github.com/storyloom/entitlement/pkg/entitlement"
)

// SlotEnforcer is invoked after any state write that may have reduced the
// user's slot count, so the active character can be reassigned if it just
// became locked. Implemented by the character access controller.
type SlotEnforcer interface {
	EnforceSlotLimit(ctx context.Context, userID uuid.UUID) error
}

// Service applies normalized billing events and link requests to the store.
type Service struct {
	store     Store
	bridge    checkout.Store
	resolver  *entitlement.Resolver
	enforcer  SlotEnforcer
	log       *slog.Logger
	bridgeTTL time.Duration
	now       func() time.Time
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithSlotEnforcer wires the character access controller in.
func WithSlotEnforcer(e SlotEnforcer) Option {
	return func(s *Service) { s.enforcer = e }
}

// WithBridgeTTL overrides the checkout-bridge TTL.
func WithBridgeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.bridgeTTL = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the subscription service.
// Panics on nil required dependencies to fail fast during initialization.
func NewService(store Store, bridge checkout.Store, resolver *entitlement.Resolver, log *slog.Logger, opts ...Option) *Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if bridge == nil {
		panic("subscription: checkout bridge is required")
	}
	if resolver == nil {
		panic("subscription: entitlement resolver is required")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		store:     store,
		bridge:    bridge,
		resolver:  resolver,
		log:       log,
		bridgeTTL: checkout.DefaultTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply resolves the event's user and writes the state it implies.
//
// Identity resolution order, first match wins:
//  1. the explicit user reference carried on the event,
//  2. the user already linked to this external subscription id,
//  3. the freshest non-expired pending checkout.
//
// No match returns ErrUnresolvableUser, which callers treat as an
// intentional no-op: the provider will redeliver, and failing the delivery
// would only cause a retry storm.
func (s *Service) Apply(ctx context.Context, ev billing.Event) error {
	now := s.now()

	userID, viaBridge, err := s.resolveUser(ctx, ev, now)
	if err != nil {
		return err
	}

	state := ev.SubscriptionState(now)
	ent := s.resolver.Resolve(state.Plan, state.Status, state.EndsAt, now)

	if err := s.store.SetState(ctx, userID, Change{
		Plan:           state.Plan,
		Status:         state.Status,
		EndsAt:         state.EndsAt,
		SubscriptionID: ev.SubscriptionID,
		Provider:       ev.Provider,
		CharacterSlots: ent.Slots,
	}); err != nil {
		return fmt.Errorf("subscription: write state: %w", err)
	}

	if viaBridge {
		// Best effort: the bridge record has served its purpose, and TTL
		// expiry covers the failure case.
		if err := s.bridge.Consume(ctx, userID); err != nil {
			s.log.WarnContext(ctx, "failed to consume pending checkout",
				slog.String("user_id", userID.String()), slog.Any("error", err))
		}
	}

	if s.enforcer != nil {
		if err := s.enforcer.EnforceSlotLimit(ctx, userID); err != nil {
			return fmt.Errorf("subscription: enforce slot limit: %w", err)
		}
	}

	s.log.InfoContext(ctx, "subscription event applied",
		slog.String("provider", ev.Provider),
		slog.String("event", ev.ProviderEvent),
		slog.String("user_id", userID.String()),
		slog.String("subscription_id", ev.SubscriptionID),
		slog.String("status", string(state.Status)))

	return nil
}

func (s *Service) resolveUser(ctx context.Context, ev billing.Event, now time.Time) (uuid.UUID, bool, error) {
	if ev.UserRef != "" {
		if userID, err := uuid.Parse(ev.UserRef); err == nil {
			return userID, false, nil
		}
		s.log.WarnContext(ctx, "event carried unparseable user reference",
			slog.String("provider", ev.Provider), slog.String("user_ref", ev.UserRef))
	}

	if ev.SubscriptionID != "" {
		rec, err := s.store.FindBySubscriptionID(ctx, ev.SubscriptionID)
		switch {
		case err == nil:
			return rec.UserID, false, nil
		case !errors.Is(err, ErrNotFound):
			return uuid.Nil, false, fmt.Errorf("subscription: lookup by subscription id: %w", err)
		}
	}

	pending, err := s.bridge.Latest(ctx, now, s.bridgeTTL)
	switch {
	case err == nil:
		return pending.UserID, true, nil
	case errors.Is(err, checkout.ErrNoPendingCheckout):
		s.log.InfoContext(ctx, "dropping unresolvable billing event",
			slog.String("provider", ev.Provider),
			slog.String("event", ev.ProviderEvent),
			slog.String("subscription_id", ev.SubscriptionID))
		return uuid.Nil, false, ErrUnresolvableUser
	default:
		return uuid.Nil, false, fmt.Errorf("subscription: checkout bridge lookup: %w", err)
	}
}

// Link attaches an externally obtained subscription id to a user, the
// user-initiated counterpart of the webhook path. fetched carries state
// retrieved from the provider's REST API, when available.
//
// Subscription state is written only from fetched: the id itself arrives
// from the client and proves nothing, so without verified provider data
// linking records identity and leaves the tier to the webhook. The same
// applies when the webhook already progressed this user past free; the
// webhook's state wins. Returns ErrAlreadyLinked when the id is already
// attached (idempotent no-op).
func (s *Service) Link(ctx context.Context, userID uuid.UUID, provider, subscriptionID string, fetched *billing.Event) error {
	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("subscription: load record: %w", err)
	}

	if rec.SubscriptionID == subscriptionID {
		return ErrAlreadyLinked
	}

	if rec.Status != entitlement.StatusFree || fetched == nil {
		if err := s.store.LinkIdentity(ctx, userID, provider, subscriptionID); err != nil {
			return fmt.Errorf("subscription: link identity: %w", err)
		}
		return nil
	}

	ev := billing.Event{
		Provider:       provider,
		ProviderEvent:  "link",
		SubscriptionID: subscriptionID,
		Plan:           fetched.Plan,
		Signal:         fetched.Signal,
		PeriodEnd:      fetched.PeriodEnd,
	}

	now := s.now()
	state := ev.SubscriptionState(now)
	ent := s.resolver.Resolve(state.Plan, state.Status, state.EndsAt, now)

	if err := s.store.SetState(ctx, userID, Change{
		Plan:           state.Plan,
		Status:         state.Status,
		EndsAt:         state.EndsAt,
		SubscriptionID: subscriptionID,
		Provider:       provider,
		CharacterSlots: ent.Slots,
	}); err != nil {
		return fmt.Errorf("subscription: write linked state: %w", err)
	}
	return nil
}

// Entitlement resolves the user's current entitlement from stored state.
// A user with no record yet is on the free tier.
func (s *Service) Entitlement(ctx context.Context, userID uuid.UUID) (entitlement.Entitlement, error) {
	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.resolver.Resolve(entitlement.PlanFree, entitlement.StatusFree, nil, s.now()), nil
		}
		return entitlement.Entitlement{}, err
	}
	return s.resolver.Resolve(rec.Plan, rec.Status, rec.EndsAt, s.now()), nil
}

// Get returns the stored record for a user.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Record, error) {
	return s.store.Get(ctx, userID)
}
