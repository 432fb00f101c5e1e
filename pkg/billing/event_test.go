package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyloom/entitlement/pkg/billing"
	"github.com/storyloom/entitlement/pkg/entitlement"
)

func TestEventSubscriptionState(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(10 * 24 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name       string
		event      billing.Event
		wantPlan   entitlement.Plan
		wantStatus entitlement.Status
	}{
		{
			name:       "activated maps to active",
			event:      billing.Event{Plan: entitlement.PlanMonthly, Signal: billing.SignalActivated, PeriodEnd: &future},
			wantPlan:   entitlement.PlanMonthly,
			wantStatus: entitlement.StatusActive,
		},
		{
			name:       "created maps to active",
			event:      billing.Event{Plan: entitlement.PlanWeekly, Signal: billing.SignalCreated, PeriodEnd: &future},
			wantPlan:   entitlement.PlanWeekly,
			wantStatus: entitlement.StatusActive,
		},
		{
			name:       "canceled keeps plan for the grace period",
			event:      billing.Event{Plan: entitlement.PlanYearly, Signal: billing.SignalCanceled, PeriodEnd: &future},
			wantPlan:   entitlement.PlanYearly,
			wantStatus: entitlement.StatusCanceled,
		},
		{
			name:       "payment failure marks past due",
			event:      billing.Event{Plan: entitlement.PlanMonthly, Signal: billing.SignalPaymentFailed, PeriodEnd: &future},
			wantPlan:   entitlement.PlanMonthly,
			wantStatus: entitlement.StatusPastDue,
		},
		{
			name:       "stale event collapses to free regardless of signal",
			event:      billing.Event{Plan: entitlement.PlanMonthly, Signal: billing.SignalActivated, PeriodEnd: &past},
			wantPlan:   entitlement.PlanFree,
			wantStatus: entitlement.StatusFree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			state := tt.event.SubscriptionState(now)
			assert.Equal(t, tt.wantPlan, state.Plan)
			assert.Equal(t, tt.wantStatus, state.Status)
		})
	}
}

func TestEventSubscriptionStateMissingPeriodEnd(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		plan entitlement.Plan
		days int
	}{
		{entitlement.PlanWeekly, 7},
		{entitlement.PlanMonthly, 30},
		{entitlement.PlanYearly, 365},
	}
	for _, tt := range tests {
		ev := billing.Event{Plan: tt.plan, Signal: billing.SignalActivated}
		state := ev.SubscriptionState(now)
		require.NotNil(t, state.EndsAt)
		assert.Equal(t, now.AddDate(0, 0, tt.days), state.EndsAt.UTC(), "plan %s", tt.plan)
		assert.Equal(t, entitlement.StatusActive, state.Status)
	}
}

func TestEventSubscriptionStateIsDeterministic(t *testing.T) {
	t.Parallel()

	// Same event at the same instant derives the same state. Absolute writes
	// of this state are what make duplicate deliveries harmless.
	now := time.Now().UTC()
	end := now.Add(30 * 24 * time.Hour)
	ev := billing.Event{Plan: entitlement.PlanMonthly, Signal: billing.SignalUpdated, PeriodEnd: &end}

	assert.Equal(t, ev.SubscriptionState(now), ev.SubscriptionState(now))
}
