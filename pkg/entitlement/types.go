package entitlement

// Plan represents a subscription billing tier.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanWeekly  Plan = "weekly"
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

// IsPaid returns true for tiers that require an active billing relationship.
func (p Plan) IsPaid() bool {
	switch p {
	case PlanWeekly, PlanMonthly, PlanYearly:
		return true
	}
	return false
}

// Valid reports whether the plan is one of the known tiers.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanWeekly, PlanMonthly, PlanYearly:
		return true
	}
	return false
}

// Status represents the current lifecycle state of a subscription.
type Status string

const (
	StatusFree     Status = "free"
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
	StatusPastDue  Status = "past_due"
	StatusInactive Status = "inactive"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusFree, StatusActive, StatusCanceled, StatusPastDue, StatusInactive:
		return true
	}
	return false
}
