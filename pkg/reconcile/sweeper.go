package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storyloom/entitlement/pkg/entitlement"
	"github.com/storyloom/entitlement/pkg/subscription"
)

const defaultBatchSize = 100

// SlotEnforcer re-derives character lock state after a downgrade.
type SlotEnforcer interface {
	EnforceSlotLimit(ctx context.Context, userID uuid.UUID) error
}

// Recharger applies the daily credit top-up across all users.
type Recharger interface {
	RechargeAll(ctx context.Context) error
}

// Sweeper demotes lapsed subscriptions and triggers the daily credit
// recharge. Run it from a scheduler or the internal sweep endpoint; two
// overlapping runs converge on the same state.
type Sweeper struct {
	store     subscription.Store
	enforcer  SlotEnforcer
	recharger Recharger
	log       *slog.Logger
	batchSize int
	freeSlots int
	now       func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithBatchSize bounds how many lapsed records one page fetches.
func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithRecharger attaches the credit ledger's batch recharge to the sweep.
func WithRecharger(r Recharger) Option {
	return func(s *Sweeper) { s.recharger = r }
}

// WithSlotEnforcer attaches character slot re-derivation to each downgrade.
func WithSlotEnforcer(e SlotEnforcer) Option {
	return func(s *Sweeper) { s.enforcer = e }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweeper panics when store or log is nil.
func NewSweeper(store subscription.Store, ent entitlement.Config, log *slog.Logger, opts ...Option) *Sweeper {
	if store == nil {
		panic("reconcile: subscription.Store is required")
	}
	if log == nil {
		panic("reconcile: logger is required")
	}
	// A demotion must never write fewer slots than the free tier grants.
	if ent.FreeSlots <= 0 {
		ent.FreeSlots = entitlement.DefaultConfig().FreeSlots
	}
	s := &Sweeper{
		store:     store,
		log:       log,
		batchSize: defaultBatchSize,
		freeSlots: ent.FreeSlots,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one full sweep: every canceled subscription whose paid-through
// instant is in the past is written back as free tier, then character locks
// are re-derived and the credit recharge runs. A failure on one user is
// logged and the batch continues.
func (s *Sweeper) Run(ctx context.Context) error {
	now := s.now()
	demoted := 0

	cursor := uuid.Nil
	for {
		batch, err := s.store.ListLapsed(ctx, now, cursor, s.batchSize)
		if err != nil {
			return fmt.Errorf("reconcile: list lapsed: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, rec := range batch {
			cursor = rec.UserID
			if err := s.demote(ctx, rec); err != nil {
				s.log.ErrorContext(ctx, "downgrade failed, skipping user",
					slog.String("user_id", rec.UserID.String()), slog.Any("error", err))
				continue
			}
			demoted++
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if s.recharger != nil {
		if err := s.recharger.RechargeAll(ctx); err != nil {
			return fmt.Errorf("reconcile: credit recharge: %w", err)
		}
	}

	s.log.InfoContext(ctx, "reconciliation sweep finished", slog.Int("demoted", demoted))
	return nil
}

func (s *Sweeper) demote(ctx context.Context, rec subscription.Record) error {
	err := s.store.SetState(ctx, rec.UserID, subscription.Change{
		Plan:           entitlement.PlanFree,
		Status:         entitlement.StatusFree,
		SubscriptionID: rec.SubscriptionID,
		Provider:       rec.Provider,
		CharacterSlots: s.freeSlots,
	})
	if err != nil {
		return err
	}
	if s.enforcer != nil {
		if err := s.enforcer.EnforceSlotLimit(ctx, rec.UserID); err != nil {
			return err
		}
	}
	return nil
}
