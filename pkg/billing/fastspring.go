package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/storyloom/entitlement/pkg/entitlement"
)

// ProviderFastSpring is the route/log identifier for the FastSpring adapter.
const ProviderFastSpring = "fastspring"

// FastSpringConfig holds the FastSpring adapter configuration.
type FastSpringConfig struct {
	HMACSecret string `env:"FASTSPRING_HMAC_SECRET,required"`
}

// FastSpringAdapter verifies the X-FS-Signature header (base64 HMAC-SHA256
// of the raw body) and maps subscription events.
//
// FastSpring batches multiple events per delivery and its subscription
// events carry no custom user metadata, so identity resolution falls
// through to the stored subscription id or the checkout bridge.
type FastSpringAdapter struct {
	secret []byte
}

// NewFastSpringAdapter creates a FastSpring webhook adapter.
func NewFastSpringAdapter(cfg FastSpringConfig) (*FastSpringAdapter, error) {
	if cfg.HMACSecret == "" {
		return nil, ErrMissingSecret
	}
	return &FastSpringAdapter{secret: []byte(cfg.HMACSecret)}, nil
}

func (a *FastSpringAdapter) Name() string { return ProviderFastSpring }

func (a *FastSpringAdapter) SignatureHeader() string { return "X-FS-Signature" }

// VerifyAndParse authenticates and normalizes a FastSpring delivery.
// A malformed event in the batch is skipped so the remaining events still
// land; failing the whole delivery would make FastSpring redeliver all of
// them, including the ones we already applied.
func (a *FastSpringAdapter) VerifyAndParse(_ context.Context, payload []byte, signature string) ([]Event, error) {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if signature == "" || !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrInvalidSignature
	}

	var delivery struct {
		Events []struct {
			ID   string         `json:"id"`
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		} `json:"events"`
	}
	if err := json.Unmarshal(payload, &delivery); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}

	events := make([]Event, 0, len(delivery.Events))
	for _, raw := range delivery.Events {
		signal, ok := fastSpringSignal(raw.Type)
		if !ok {
			continue
		}

		doc := Document(raw.Data)
		subID := doc.String("subscription", "id", "subscription.id")
		if subID == "" {
			// Skip rather than fail the batch.
			continue
		}

		ev := Event{
			Provider:       ProviderFastSpring,
			ProviderEvent:  raw.Type,
			UserRef:        doc.String("tags.user_id", "tags.userId"),
			SubscriptionID: subID,
			Signal:         signal,
			PeriodEnd:      fastSpringPeriodEnd(doc),
		}
		ev.Plan = InferCycle(doc, entitlement.PlanMonthly)
		events = append(events, ev)
	}

	return events, nil
}

// fastSpringPeriodEnd handles FastSpring reporting instants either as
// RFC 3339 strings or as epoch milliseconds, depending on the field.
func fastSpringPeriodEnd(doc Document) *time.Time {
	if ts := doc.Time("nextChargeDate", "endPeriod", "deactivationDate"); ts != nil {
		return ts
	}
	for _, path := range []string{"nextInSeconds", "next"} {
		if v, ok := doc[path]; ok {
			if millis, ok := v.(float64); ok && millis > 0 {
				unit := time.Millisecond
				if path == "nextInSeconds" {
					unit = time.Second
				}
				ts := time.Unix(0, int64(millis)*int64(unit)).UTC()
				return &ts
			}
		}
	}
	return nil
}

func fastSpringSignal(eventType string) (Signal, bool) {
	switch eventType {
	case "subscription.activated":
		return SignalActivated, true
	case "subscription.updated", "subscription.charge.completed":
		return SignalUpdated, true
	case "subscription.canceled":
		return SignalCanceled, true
	case "subscription.deactivated":
		return SignalCanceled, true
	case "subscription.charge.failed", "subscription.payment.overdue":
		return SignalPaymentFailed, true
	}
	return "", false
}
