package billing

import (
	"strings"
	"time"

	"github.com/storyloom/entitlement/pkg/entitlement"
)

// CycleStrategy attempts to infer the billing cycle from one place a
// provider might record it. Strategies are pure and individually testable;
// InferCycle runs them in order and the first match wins.
type CycleStrategy struct {
	Name  string
	Infer func(doc Document) (entitlement.Plan, bool)
}

// DefaultCycleStrategies is the standard inference order: an explicit
// interval field is most trustworthy, then the human-readable plan or
// variant name, then the length of the reported billing period.
func DefaultCycleStrategies() []CycleStrategy {
	return []CycleStrategy{
		{Name: "interval_field", Infer: inferFromIntervalField},
		{Name: "plan_name", Infer: inferFromPlanName},
		{Name: "period_delta", Infer: inferFromPeriodDelta},
	}
}

// InferCycle runs the strategies in order and returns the first match,
// or fallback when none of them can decide.
func InferCycle(doc Document, fallback entitlement.Plan, strategies ...CycleStrategy) entitlement.Plan {
	if len(strategies) == 0 {
		strategies = DefaultCycleStrategies()
	}
	for _, s := range strategies {
		if plan, ok := s.Infer(doc); ok {
			return plan
		}
	}
	return fallback
}

func inferFromIntervalField(doc Document) (entitlement.Plan, bool) {
	interval := doc.String(
		"billing_cycle.interval",
		"data.billing_cycle.interval",
		"interval",
		"intervalUnit",
		"attributes.interval",
	)
	return planFromToken(interval)
}

func inferFromPlanName(doc Document) (entitlement.Plan, bool) {
	name := doc.String(
		"variant_name",
		"attributes.variant_name",
		"product_name",
		"attributes.product_name",
		"plan",
		"display",
	)
	if name == "" {
		return "", false
	}
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "year") || strings.Contains(name, "annual"):
		return entitlement.PlanYearly, true
	case strings.Contains(name, "month"):
		return entitlement.PlanMonthly, true
	case strings.Contains(name, "week"):
		return entitlement.PlanWeekly, true
	}
	return "", false
}

func inferFromPeriodDelta(doc Document) (entitlement.Plan, bool) {
	start := doc.Time("current_billing_period.starts_at", "beginPeriod", "attributes.created_at")
	end := doc.Time("current_billing_period.ends_at", "endPeriod", "attributes.renews_at")
	if start == nil || end == nil || !end.After(*start) {
		return "", false
	}

	days := end.Sub(*start) / (24 * time.Hour)
	switch {
	case days <= 10:
		return entitlement.PlanWeekly, true
	case days <= 45:
		return entitlement.PlanMonthly, true
	default:
		return entitlement.PlanYearly, true
	}
}

func planFromToken(token string) (entitlement.Plan, bool) {
	switch strings.ToLower(token) {
	case "week", "weekly":
		return entitlement.PlanWeekly, true
	case "month", "monthly":
		return entitlement.PlanMonthly, true
	case "year", "yearly", "annual", "annually":
		return entitlement.PlanYearly, true
	}
	return "", false
}
