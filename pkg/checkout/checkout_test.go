package checkout_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/entitlement/pkg/checkout"
)

func TestMemoryStoreLatest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := checkout.NewMemoryStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	older := uuid.New()
	newer := uuid.New()
	require.NoError(t, store.Begin(ctx, older, now.Add(-2*time.Minute)))
	require.NoError(t, store.Begin(ctx, newer, now.Add(-30*time.Second)))

	p, err := store.Latest(ctx, now, checkout.DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, newer, p.UserID)
}

func TestMemoryStoreTTLEnforcedAtRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := checkout.NewMemoryStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// A row older than the TTL is ignored even though it was never deleted.
	stale := uuid.New()
	require.NoError(t, store.Begin(ctx, stale, now.Add(-6*time.Minute)))

	_, err := store.Latest(ctx, now, checkout.DefaultTTL)
	assert.ErrorIs(t, err, checkout.ErrNoPendingCheckout)
}

func TestMemoryStoreBeginRefreshes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := checkout.NewMemoryStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	userID := uuid.New()
	require.NoError(t, store.Begin(ctx, userID, now.Add(-10*time.Minute)))
	require.NoError(t, store.Begin(ctx, userID, now.Add(-time.Minute)))

	p, err := store.Latest(ctx, now, checkout.DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, now.Add(-time.Minute), p.CreatedAt)
}

func TestMemoryStoreConsume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := checkout.NewMemoryStore()
	now := time.Now().UTC()

	userID := uuid.New()
	require.NoError(t, store.Begin(ctx, userID, now))
	require.NoError(t, store.Consume(ctx, userID))

	_, err := store.Latest(ctx, now, checkout.DefaultTTL)
	assert.ErrorIs(t, err, checkout.ErrNoPendingCheckout)

	// Consuming an already-gone record is a no-op.
	assert.NoError(t, store.Consume(ctx, userID))
}
