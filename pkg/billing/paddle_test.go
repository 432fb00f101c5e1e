package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/entitlement/pkg/billing"
	"github.com/storyloom/entitlement/pkg/entitlement"
)

const paddleSecret = "pdl_ntfset_test_secret"

// paddleSign reproduces Paddle's signature scheme:
// ts=<unix>;h1=hex(hmac_sha256(secret, "<unix>:<body>")).
func paddleSign(t *testing.T, payload []byte) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(paddleSecret))
	fmt.Fprintf(mac, "%d:%s", ts, payload)
	return fmt.Sprintf("ts=%d;h1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newPaddle(t *testing.T) *billing.PaddleAdapter {
	t.Helper()
	a, err := billing.NewPaddleAdapter(billing.PaddleConfig{WebhookSecret: paddleSecret})
	require.NoError(t, err)
	return a
}

func TestPaddleVerifyAndParse(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"event_type": "subscription.activated",
		"data": {
			"id": "sub_abc",
			"status": "active",
			"custom_data": {"user_id": "b1946ac9-2f5e-4a5b-8f06-6a1f0f1c9a01"},
			"current_billing_period": {
				"starts_at": "2024-06-01T00:00:00Z",
				"ends_at": "2024-07-01T00:00:00Z"
			},
			"items": [
				{"price": {"id": "pri_1", "billing_cycle": {"interval": "month", "frequency": 1}}}
			]
		}
	}`)

	events, err := newPaddle(t).VerifyAndParse(context.Background(), payload, paddleSign(t, payload))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, billing.ProviderPaddle, ev.Provider)
	assert.Equal(t, "b1946ac9-2f5e-4a5b-8f06-6a1f0f1c9a01", ev.UserRef)
	assert.Equal(t, "sub_abc", ev.SubscriptionID)
	assert.Equal(t, billing.SignalActivated, ev.Signal)
	assert.Equal(t, entitlement.PlanMonthly, ev.Plan)
	require.NotNil(t, ev.PeriodEnd)
	assert.Equal(t, time.July, ev.PeriodEnd.Month())
}

func TestPaddleRejectsBadSignature(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"event_type":"subscription.activated","data":{"id":"sub_abc"}}`)
	_, err := newPaddle(t).VerifyAndParse(context.Background(), payload, "ts=1;h1=00")
	assert.ErrorIs(t, err, billing.ErrInvalidSignature)
}

func TestPaddleIgnoresUnknownEventTypes(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"event_type":"address.created","data":{"id":"add_1"}}`)
	events, err := newPaddle(t).VerifyAndParse(context.Background(), payload, paddleSign(t, payload))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPaddleCanceledSubscription(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"event_type": "subscription.canceled",
		"data": {
			"id": "sub_abc",
			"custom_data": {"user_id": "b1946ac9-2f5e-4a5b-8f06-6a1f0f1c9a01"},
			"scheduled_change": {"action": "cancel", "effective_at": "2024-08-01T00:00:00Z"},
			"items": [{"price": {"billing_cycle": {"interval": "year"}}}]
		}
	}`)

	events, err := newPaddle(t).VerifyAndParse(context.Background(), payload, paddleSign(t, payload))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, billing.SignalCanceled, events[0].Signal)
	assert.Equal(t, entitlement.PlanYearly, events[0].Plan)
	require.NotNil(t, events[0].PeriodEnd)
}
