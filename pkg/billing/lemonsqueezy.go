package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/storyloom/entitlement/pkg/entitlement"
)

// ProviderLemonSqueezy is the route/log identifier for the Lemon Squeezy adapter.
const ProviderLemonSqueezy = "lemonsqueezy"

// LemonSqueezyConfig holds the Lemon Squeezy adapter configuration.
type LemonSqueezyConfig struct {
	SigningSecret string `env:"LEMONSQUEEZY_SIGNING_SECRET,required"`
}

// LemonSqueezyAdapter verifies the X-Signature header (hex HMAC-SHA256 of
// the raw body) and maps subscription events. The checkout flow passes our
// user id through meta.custom_data, so identity usually resolves directly.
type LemonSqueezyAdapter struct {
	secret []byte
}

// NewLemonSqueezyAdapter creates a Lemon Squeezy webhook adapter.
func NewLemonSqueezyAdapter(cfg LemonSqueezyConfig) (*LemonSqueezyAdapter, error) {
	if cfg.SigningSecret == "" {
		return nil, ErrMissingSecret
	}
	return &LemonSqueezyAdapter{secret: []byte(cfg.SigningSecret)}, nil
}

func (a *LemonSqueezyAdapter) Name() string { return ProviderLemonSqueezy }

func (a *LemonSqueezyAdapter) SignatureHeader() string { return "X-Signature" }

// VerifyAndParse authenticates and normalizes a Lemon Squeezy delivery.
// One event per delivery.
func (a *LemonSqueezyAdapter) VerifyAndParse(_ context.Context, payload []byte, signature string) ([]Event, error) {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if signature == "" || !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrInvalidSignature
	}

	var delivery struct {
		Meta struct {
			EventName  string            `json:"event_name"`
			CustomData map[string]string `json:"custom_data"`
		} `json:"meta"`
		Data struct {
			ID         string         `json:"id"`
			Attributes map[string]any `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &delivery); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}

	signal, ok := lemonSqueezySignal(delivery.Meta.EventName)
	if !ok {
		return nil, nil
	}
	if delivery.Data.ID == "" {
		return nil, ErrMalformedEvent
	}

	attrs := Document(delivery.Data.Attributes)
	ev := Event{
		Provider:       ProviderLemonSqueezy,
		ProviderEvent:  delivery.Meta.EventName,
		UserRef:        delivery.Meta.CustomData["user_id"],
		SubscriptionID: delivery.Data.ID,
		Signal:         signal,
		PeriodEnd:      attrs.Time("renews_at", "ends_at"),
	}
	ev.Plan = InferCycle(attrs, entitlement.PlanMonthly)

	return []Event{ev}, nil
}

func lemonSqueezySignal(eventName string) (Signal, bool) {
	switch eventName {
	case "subscription_created":
		return SignalCreated, true
	case "subscription_resumed", "subscription_unpaused":
		return SignalActivated, true
	case "subscription_updated", "subscription_plan_changed":
		return SignalUpdated, true
	case "subscription_cancelled", "subscription_expired":
		return SignalCanceled, true
	case "subscription_payment_failed":
		return SignalPaymentFailed, true
	}
	return "", false
}
