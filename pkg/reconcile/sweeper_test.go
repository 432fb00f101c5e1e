package reconcile_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/entitlement/pkg/entitlement"
	"github.com/storyloom/entitlement/pkg/reconcile"
	"github.com/storyloom/entitlement/pkg/subscription"
)

type recordingEnforcer struct {
	mu    sync.Mutex
	calls []uuid.UUID
	fail  map[uuid.UUID]error
}

func (e *recordingEnforcer) EnforceSlotLimit(_ context.Context, userID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, userID)
	if e.fail != nil {
		return e.fail[userID]
	}
	return nil
}

type recordingRecharger struct{ runs int }

func (r *recordingRecharger) RechargeAll(context.Context) error {
	r.runs++
	return nil
}

func seedCanceled(store *subscription.MemoryStore, endsAt time.Time) uuid.UUID {
	userID := uuid.New()
	store.Seed(subscription.Record{
		UserID:         userID,
		Plan:           entitlement.PlanMonthly,
		Status:         entitlement.StatusCanceled,
		EndsAt:         &endsAt,
		SubscriptionID: "sub_" + userID.String()[:8],
		Provider:       "paddle",
		CharacterSlots: 3,
		Timezone:       "UTC",
	})
	return userID
}

func TestSweeperDowngradesLapsed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	enforcer := &recordingEnforcer{}

	lapsed := seedCanceled(store, now.Add(-time.Hour))
	inGrace := seedCanceled(store, now.Add(time.Hour))

	sw := reconcile.NewSweeper(store, entitlement.DefaultConfig(), slog.New(slog.DiscardHandler),
		reconcile.WithSlotEnforcer(enforcer),
		reconcile.WithClock(func() time.Time { return now }))
	require.NoError(t, sw.Run(ctx))

	rec, err := store.Get(ctx, lapsed)
	require.NoError(t, err)
	assert.Equal(t, entitlement.PlanFree, rec.Plan)
	assert.Equal(t, entitlement.StatusFree, rec.Status)
	assert.Equal(t, 1, rec.CharacterSlots)
	assert.NotEmpty(t, rec.SubscriptionID, "provider identity survives the downgrade")

	// Still inside the grace period: untouched.
	rec, err = store.Get(ctx, inGrace)
	require.NoError(t, err)
	assert.Equal(t, entitlement.StatusCanceled, rec.Status)
	assert.Equal(t, 3, rec.CharacterSlots)

	assert.Equal(t, []uuid.UUID{lapsed}, enforcer.calls)
}

func TestSweeperZeroConfigKeepsFreeSlots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	userID := seedCanceled(store, now.Add(-time.Hour))

	sw := reconcile.NewSweeper(store, entitlement.Config{}, slog.New(slog.DiscardHandler),
		reconcile.WithClock(func() time.Time { return now }))
	require.NoError(t, sw.Run(ctx))

	rec, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CharacterSlots, "a demoted user always keeps at least one slot")
}

func TestSweeperIsReentrant(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	userID := seedCanceled(store, now.Add(-time.Hour))

	sw := reconcile.NewSweeper(store, entitlement.DefaultConfig(), slog.New(slog.DiscardHandler),
		reconcile.WithClock(func() time.Time { return now }))
	require.NoError(t, sw.Run(ctx))
	require.NoError(t, sw.Run(ctx))

	rec, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, entitlement.StatusFree, rec.Status)
	assert.Equal(t, 1, rec.CharacterSlots)
}

func TestSweeperSkipsFailedUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()

	a := seedCanceled(store, now.Add(-time.Hour))
	b := seedCanceled(store, now.Add(-time.Hour))
	enforcer := &recordingEnforcer{fail: map[uuid.UUID]error{a: errors.New("boom")}}

	sw := reconcile.NewSweeper(store, entitlement.DefaultConfig(), slog.New(slog.DiscardHandler),
		reconcile.WithSlotEnforcer(enforcer),
		reconcile.WithClock(func() time.Time { return now }))
	require.NoError(t, sw.Run(ctx))

	// Both users were attempted despite one enforcement failure.
	assert.Len(t, enforcer.calls, 2)
	rec, err := store.Get(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, entitlement.StatusFree, rec.Status)
}

func TestSweeperPagesInBatches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	for range 7 {
		seedCanceled(store, now.Add(-time.Hour))
	}

	recharger := &recordingRecharger{}
	sw := reconcile.NewSweeper(store, entitlement.DefaultConfig(), slog.New(slog.DiscardHandler),
		reconcile.WithBatchSize(2),
		reconcile.WithRecharger(recharger),
		reconcile.WithClock(func() time.Time { return now }))
	require.NoError(t, sw.Run(ctx))

	lapsed, err := store.ListLapsed(ctx, now, uuid.Nil, 0)
	require.NoError(t, err)
	assert.Empty(t, lapsed)
	assert.Equal(t, 1, recharger.runs)
}
