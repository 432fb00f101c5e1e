package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/entitlement/pkg/billing"
	"github.com/storyloom/entitlement/pkg/entitlement"
)

const lsSecret = "ls-test-secret"

func lsSign(t *testing.T, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(lsSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func newLemonSqueezy(t *testing.T) *billing.LemonSqueezyAdapter {
	t.Helper()
	a, err := billing.NewLemonSqueezyAdapter(billing.LemonSqueezyConfig{SigningSecret: lsSecret})
	require.NoError(t, err)
	return a
}

func TestLemonSqueezyVerifyAndParse(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"meta": {
			"event_name": "subscription_created",
			"custom_data": {"user_id": "4f9bd9a1-5b6e-4f6e-9a37-0a4f4fbd64d1"}
		},
		"data": {
			"id": "sub_123",
			"attributes": {
				"status": "active",
				"variant_name": "Storyloom Yearly",
				"renews_at": "2025-06-01T00:00:00Z"
			}
		}
	}`)

	events, err := newLemonSqueezy(t).VerifyAndParse(context.Background(), payload, lsSign(t, payload))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, billing.ProviderLemonSqueezy, ev.Provider)
	assert.Equal(t, "4f9bd9a1-5b6e-4f6e-9a37-0a4f4fbd64d1", ev.UserRef)
	assert.Equal(t, "sub_123", ev.SubscriptionID)
	assert.Equal(t, billing.SignalCreated, ev.Signal)
	assert.Equal(t, entitlement.PlanYearly, ev.Plan)
	require.NotNil(t, ev.PeriodEnd)
	assert.Equal(t, 2025, ev.PeriodEnd.Year())
}

func TestLemonSqueezyRejectsBadSignature(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"meta":{"event_name":"subscription_created"},"data":{"id":"sub_123"}}`)

	_, err := newLemonSqueezy(t).VerifyAndParse(context.Background(), payload, "deadbeef")
	assert.ErrorIs(t, err, billing.ErrInvalidSignature)

	_, err = newLemonSqueezy(t).VerifyAndParse(context.Background(), payload, "")
	assert.ErrorIs(t, err, billing.ErrInvalidSignature)
}

func TestLemonSqueezyMalformedPayload(t *testing.T) {
	t.Parallel()

	payload := []byte(`{not json`)
	_, err := newLemonSqueezy(t).VerifyAndParse(context.Background(), payload, lsSign(t, payload))
	assert.ErrorIs(t, err, billing.ErrMalformedPayload)
}

func TestLemonSqueezyIgnoresUnknownEvents(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"meta":{"event_name":"order_refunded"},"data":{"id":"ord_9"}}`)
	events, err := newLemonSqueezy(t).VerifyAndParse(context.Background(), payload, lsSign(t, payload))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestLemonSqueezyCancellation(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"meta": {"event_name": "subscription_cancelled"},
		"data": {
			"id": "sub_777",
			"attributes": {"variant_name": "Storyloom Monthly", "ends_at": "2024-07-15T00:00:00Z"}
		}
	}`)

	events, err := newLemonSqueezy(t).VerifyAndParse(context.Background(), payload, lsSign(t, payload))
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, billing.SignalCanceled, events[0].Signal)
	assert.Empty(t, events[0].UserRef) // resolved downstream via subscription id
	assert.Equal(t, entitlement.PlanMonthly, events[0].Plan)
}
