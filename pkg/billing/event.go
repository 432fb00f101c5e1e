package billing

import (
	"time"

	"github.com/storyloom/entitlement/pkg/entitlement"
)

// Signal is the normalized subscription lifecycle signal carried by an event.
type Signal string

const (
	SignalCreated       Signal = "created"
	SignalActivated     Signal = "activated"
	SignalUpdated       Signal = "updated"
	SignalCanceled      Signal = "canceled"
	SignalPaymentFailed Signal = "payment_failed"
)

// Event is the canonical shape every provider adapter normalizes into.
//
// UserRef is the explicit buyer reference the provider carried in custom
// metadata, when it supports any; empty when the webhook has no reliable
// user reference and identity must be resolved from the subscription id or
// the checkout bridge.
type Event struct {
	Provider       string
	ProviderEvent  string // original provider event name, for logging
	UserRef        string
	SubscriptionID string
	Plan           entitlement.Plan
	Signal         Signal
	PeriodEnd      *time.Time
}

// State is the absolute subscription state an event writes. Applying the
// same event twice produces the same State, which is what makes webhook
// processing idempotent: writes are absolute, never relative.
type State struct {
	Plan   entitlement.Plan
	Status entitlement.Status
	EndsAt *time.Time
}

// SubscriptionState derives the absolute state this event implies at the
// given instant.
//
// When the provider omitted the renewal instant, the period end is computed
// from the plan's cycle length starting now. A computed end already in the
// past collapses to the free tier regardless of the raw signal, which makes
// processing self-healing against stale or long-delayed deliveries.
func (e Event) SubscriptionState(now time.Time) State {
	plan := e.Plan
	if !plan.Valid() || plan == entitlement.PlanFree {
		plan = entitlement.PlanMonthly
	}

	endsAt := e.PeriodEnd
	if endsAt == nil {
		end := now.Add(CycleLength(plan))
		endsAt = &end
	}

	if !endsAt.After(now) {
		return State{Plan: entitlement.PlanFree, Status: entitlement.StatusFree, EndsAt: endsAt}
	}

	var status entitlement.Status
	switch e.Signal {
	case SignalCanceled:
		status = entitlement.StatusCanceled
	case SignalPaymentFailed:
		status = entitlement.StatusPastDue
	default:
		// created, activated and updated all mean the provider considers the
		// subscription live.
		status = entitlement.StatusActive
	}

	return State{Plan: plan, Status: status, EndsAt: endsAt}
}

// CycleLength returns the billing period duration for a paid tier,
// used when a provider omits the renewal instant.
func CycleLength(plan entitlement.Plan) time.Duration {
	switch plan {
	case entitlement.PlanWeekly:
		return 7 * 24 * time.Hour
	case entitlement.PlanYearly:
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}
