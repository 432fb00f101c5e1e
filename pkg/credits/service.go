package credits

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/entitlement/pkg/localday"
)

// sweepBatchSize bounds how many users one List page loads during the
// batch recharge.
const sweepBatchSize = 100

// Service is the credit ledger.
type Service struct {
	store Store
	cfg   Config
	log   *slog.Logger
	now   func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the ledger. Panics on a nil store to fail fast.
func NewService(store Store, cfg Config, log *slog.Logger, opts ...Option) *Service {
	if store == nil {
		panic("credits: Store is required")
	}
	if log == nil {
		log = slog.Default()
	}
	def := DefaultConfig()
	if cfg.RechargeAmount <= 0 {
		cfg.RechargeAmount = def.RechargeAmount
	}
	if cfg.RechargeCap <= 0 {
		cfg.RechargeCap = def.RechargeCap
	}
	if cfg.StarterKitCredits <= 0 {
		cfg.StarterKitCredits = def.StarterKitCredits
	}

	s := &Service{
		store: store,
		cfg:   cfg,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Balance returns the user's balance, first applying the daily recharge if
// it has not run yet on the user's current local day.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	state, err := s.store.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	state, err = s.rechargeIfDue(ctx, state)
	if err != nil {
		return 0, err
	}
	return state.Balance, nil
}

// Debit spends credits. The store applies it conditionally, so a
// concurrent debit racing this one can never overdraw the balance.
// The balance is recharged first so a user is never denied credits the
// day already owes them.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credits: invalid debit amount %d", amount)
	}
	state, err := s.store.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if _, err := s.rechargeIfDue(ctx, state); err != nil {
		return 0, err
	}
	return s.store.Debit(ctx, userID, amount)
}

// CanPurchaseStarterKit reports one-time starter-kit eligibility. The flag
// is permanent: once purchased it is never recomputed from anything else.
func (s *Service) CanPurchaseStarterKit(ctx context.Context, userID uuid.UUID) (bool, error) {
	state, err := s.store.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return !state.HasStarterKit, nil
}

// PurchaseStarterKit marks the flag and grants the kit's credits. The
// grant is additive and not subject to the recharge cap; purchased credits
// do not evaporate.
func (s *Service) PurchaseStarterKit(ctx context.Context, userID uuid.UUID) (int, error) {
	state, err := s.store.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if state.HasStarterKit {
		return state.Balance, ErrStarterKitOwned
	}
	if err := s.store.MarkStarterKit(ctx, userID); err != nil {
		return 0, err
	}
	return s.store.Add(ctx, userID, s.cfg.StarterKitCredits)
}

// RechargeAll applies the daily recharge for every user, in bounded
// batches. Safe to run concurrently with the lazy per-request path: the
// per-user write is the same compare-and-set, so the second trigger on a
// given local day is a no-op. Per-user failures are logged and skipped so
// one bad row cannot stall the sweep.
func (s *Service) RechargeAll(ctx context.Context) error {
	cursor := uuid.Nil
	for {
		batch, err := s.store.List(ctx, cursor, sweepBatchSize)
		if err != nil {
			return fmt.Errorf("credits: list batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}
		for i := range batch {
			state := batch[i]
			cursor = state.UserID
			if _, err := s.rechargeIfDue(ctx, &state); err != nil {
				s.log.WarnContext(ctx, "credit recharge failed for user",
					slog.String("user_id", state.UserID.String()), slog.Any("error", err))
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// rechargeIfDue tops the balance up when the last recharge happened on a
// prior local day. Returns the fresh state. Idempotent per user per day.
func (s *Service) rechargeIfDue(ctx context.Context, state *State) (*State, error) {
	now := s.now()

	if state.RechargedAt != nil {
		same, err := localday.SameDay(*state.RechargedAt, now, state.Timezone)
		if err != nil {
			return nil, err
		}
		if same {
			return state, nil
		}
	}

	// The store owns the top-up arithmetic, so a grant landing between the
	// caller's read and this write cannot be overwritten with stale math.
	// A false return means another writer recharged first; either way the
	// re-read reports whatever the winning write produced.
	if _, err := s.store.Recharge(ctx, state.UserID, state.RechargedAt,
		s.cfg.RechargeAmount, s.cfg.RechargeCap, now); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, state.UserID)
}
