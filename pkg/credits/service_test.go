package credits_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/entitlement/pkg/credits"
)

func newLedger(t *testing.T, store *credits.MemoryStore, now time.Time) *credits.Service {
	t.Helper()
	return credits.NewService(store, credits.DefaultConfig(), slog.New(slog.DiscardHandler),
		credits.WithClock(func() time.Time { return now }))
}

func seedUser(store *credits.MemoryStore, balance int, rechargedAt *time.Time) uuid.UUID {
	userID := uuid.New()
	store.Seed(credits.State{UserID: userID, Balance: balance, RechargedAt: rechargedAt, Timezone: "UTC"})
	return userID
}

func TestBalanceLazyRecharge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := credits.NewMemoryStore()
	svc := newLedger(t, store, now)

	yesterday := now.Add(-24 * time.Hour)
	userID := seedUser(store, 3, &yesterday)

	// First read of the new day tops up.
	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 8, balance)

	// Second read on the same day is a no-op.
	balance, err = svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 8, balance)
}

func TestRechargeNeverExceedsCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := credits.NewMemoryStore()
	svc := newLedger(t, store, now)

	yesterday := now.Add(-24 * time.Hour)

	// 8 + 5 would cross the cap of 10; the top-up clamps.
	nearCap := seedUser(store, 8, &yesterday)
	balance, err := svc.Balance(ctx, nearCap)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)

	// A balance already above the cap (starter kit) is left alone.
	aboveCap := seedUser(store, 40, &yesterday)
	balance, err = svc.Balance(ctx, aboveCap)
	require.NoError(t, err)
	assert.Equal(t, 40, balance)
}

func TestRechargeRespectsLocalDay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	// 04:30 UTC is still the previous local day in New York; a recharge
	// stamped the prior local evening must not re-run.
	now := time.Date(2024, 1, 2, 4, 30, 0, 0, time.UTC)
	lastEvening := time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC) // 20:00 local Jan 1

	store := credits.NewMemoryStore()
	svc := newLedger(t, store, now)
	userID := uuid.New()
	store.Seed(credits.State{UserID: userID, Balance: 2, RechargedAt: &lastEvening, Timezone: "America/New_York"})

	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, balance)
}

func TestConcurrentRechargeAppliesOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := credits.NewMemoryStore()
	svc := newLedger(t, store, now)

	yesterday := now.Add(-24 * time.Hour)
	userID := seedUser(store, 0, &yesterday)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Balance(ctx, userID)
		}()
	}
	wg.Wait()

	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 5, balance)
}

func TestDebit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := credits.NewMemoryStore()
	svc := newLedger(t, store, now)
	userID := seedUser(store, 4, &now)

	balance, err := svc.Debit(ctx, userID, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, balance)

	_, err = svc.Debit(ctx, userID, 3)
	assert.ErrorIs(t, err, credits.ErrInsufficientCredits)

	_, err = svc.Debit(ctx, userID, 0)
	assert.Error(t, err)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := credits.NewMemoryStore()
	svc := newLedger(t, store, now)
	userID := seedUser(store, 5, &now)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Debit(ctx, userID, 1); err == nil {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	assert.Len(t, granted, 5)
	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestStarterKit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := credits.NewMemoryStore()
	svc := newLedger(t, store, now)
	userID := seedUser(store, 0, &now)

	ok, err := svc.CanPurchaseStarterKit(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)

	balance, err := svc.PurchaseStarterKit(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)

	// The flag is permanent.
	ok, err = svc.CanPurchaseStarterKit(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.PurchaseStarterKit(ctx, userID)
	assert.ErrorIs(t, err, credits.ErrStarterKitOwned)
}

func TestRechargeKeepsGrantLandingAfterStaleRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	store := credits.NewMemoryStore()
	svc := newLedger(t, store, now)
	userID := seedUser(store, 3, &yesterday)

	// A recharge in flight read the state, then the starter-kit purchase
	// committed before the recharge wrote.
	stale, err := store.Get(ctx, userID)
	require.NoError(t, err)

	balance, err := svc.PurchaseStarterKit(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 53, balance)

	ok, err := store.Recharge(ctx, userID, stale.RechargedAt, 5, 10, now)
	require.NoError(t, err)
	require.True(t, ok)

	// Purchased credits survive; above the cap the recharge only advances
	// the marker.
	got, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 53, got)
}

func TestRechargeAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	store := credits.NewMemoryStore()
	svc := newLedger(t, store, now)

	yesterday := now.Add(-24 * time.Hour)
	stale := make([]uuid.UUID, 0, 150)
	for range 150 { // more than one sweep batch
		stale = append(stale, seedUser(store, 1, &yesterday))
	}
	fresh := seedUser(store, 1, &now)

	require.NoError(t, svc.RechargeAll(ctx))

	for _, userID := range stale {
		state, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 6, state.Balance)
	}

	// Already recharged today: untouched.
	state, err := store.Get(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Balance)

	// Running the sweep again on the same day is a no-op.
	require.NoError(t, svc.RechargeAll(ctx))
	state, err = store.Get(ctx, stale[0])
	require.NoError(t, err)
	assert.Equal(t, 6, state.Balance)
}
