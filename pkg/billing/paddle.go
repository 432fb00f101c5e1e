package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/storyloom/entitlement/pkg/entitlement"
)

// ProviderPaddle is the route/log identifier for the Paddle adapter.
const ProviderPaddle = "paddle"

// PaddleConfig holds the Paddle adapter configuration.
type PaddleConfig struct {
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
}

// PaddleAdapter verifies Paddle webhook deliveries with the official SDK
// verifier and maps subscription events into the canonical shape.
//
// Paddle carries our user id in custom_data (set at checkout creation), so
// its events almost always resolve identity directly.
type PaddleAdapter struct {
	verifier *paddle.WebhookVerifier
}

// NewPaddleAdapter creates a Paddle webhook adapter.
func NewPaddleAdapter(cfg PaddleConfig) (*PaddleAdapter, error) {
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingSecret
	}
	return &PaddleAdapter{verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret)}, nil
}

func (a *PaddleAdapter) Name() string { return ProviderPaddle }

func (a *PaddleAdapter) SignatureHeader() string { return "Paddle-Signature" }

// VerifyAndParse authenticates the delivery against the Paddle-Signature
// header and normalizes the event. Paddle sends one event per delivery.
func (a *PaddleAdapter) VerifyAndParse(ctx context.Context, payload []byte, signature string) ([]Event, error) {
	// The SDK verifier consumes an *http.Request, so rebuild one around the
	// already-read body.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("billing: build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := a.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var delivery struct {
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &delivery); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}

	signal, ok := paddleSignal(delivery.EventType)
	if !ok {
		// Paddle emits many event families we do not subscribe to; an
		// unknown type is an intentional no-op, not an error.
		return nil, nil
	}

	doc := Document(delivery.Data)
	ev := Event{
		Provider:       ProviderPaddle,
		ProviderEvent:  delivery.EventType,
		UserRef:        doc.String("custom_data.user_id", "custom_data.customer_id"),
		SubscriptionID: doc.String("id", "subscription_id"),
		Signal:         signal,
		PeriodEnd: doc.Time(
			"current_billing_period.ends_at",
			"next_billed_at",
			"scheduled_change.effective_at",
		),
	}
	ev.Plan = InferCycle(paddleCycleDoc(doc), entitlement.PlanMonthly)

	if ev.SubscriptionID == "" {
		return nil, ErrMalformedEvent
	}
	return []Event{ev}, nil
}

// PaddleSubscriptionEvent maps a subscription entity fetched from Paddle's
// REST API (marshaled back to JSON) into a canonical event. The link flow
// uses it to seed state when no webhook has arrived yet.
func PaddleSubscriptionEvent(raw []byte) (Event, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return Event{}, errors.Join(ErrMalformedPayload, err)
	}
	doc := Document(data)

	signal := SignalUpdated
	switch doc.String("status") {
	case "active", "trialing":
		signal = SignalActivated
	case "canceled":
		signal = SignalCanceled
	case "past_due":
		signal = SignalPaymentFailed
	}

	ev := Event{
		Provider:       ProviderPaddle,
		ProviderEvent:  "subscription.fetched",
		UserRef:        doc.String("custom_data.user_id", "custom_data.customer_id"),
		SubscriptionID: doc.String("id"),
		Signal:         signal,
		PeriodEnd:      doc.Time("current_billing_period.ends_at", "next_billed_at"),
	}
	ev.Plan = InferCycle(paddleCycleDoc(doc), entitlement.PlanMonthly)

	if ev.SubscriptionID == "" {
		return Event{}, ErrMalformedEvent
	}
	return ev, nil
}

// paddleCycleDoc lifts the first subscription item into scope so the shared
// cycle strategies can see its billing_cycle and product name.
func paddleCycleDoc(doc Document) Document {
	merged := Document{}
	for k, v := range doc {
		merged[k] = v
	}
	if items, ok := doc["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			if price, ok := item["price"].(map[string]any); ok {
				if bc, ok := price["billing_cycle"].(map[string]any); ok {
					merged["billing_cycle"] = bc
				}
			}
			if product, ok := item["product"].(map[string]any); ok {
				if name, ok := product["name"].(string); ok {
					merged["product_name"] = name
				}
			}
		}
	}
	return merged
}

func paddleSignal(eventType string) (Signal, bool) {
	switch eventType {
	case "subscription.created":
		return SignalCreated, true
	case "subscription.activated", "subscription.resumed", "subscription.trialing":
		return SignalActivated, true
	case "subscription.updated":
		return SignalUpdated, true
	case "subscription.canceled":
		return SignalCanceled, true
	case "subscription.past_due", "transaction.payment_failed":
		return SignalPaymentFailed, true
	}
	return "", false
}
