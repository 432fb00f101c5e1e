// Package billing normalizes webhook traffic from the payment providers
// Storyloom sells through (Paddle, Lemon Squeezy, FastSpring) into a single
// canonical Event shape.
//
// Each provider is a small adapter implementing the Provider interface:
// verify the delivery's signature against the provider's shared secret,
// then map the payload into zero or more Events. Everything downstream of
// the adapter (identity resolution, state transitions, idempotency) is
// shared and lives in pkg/subscription, so the convergence properties are
// tested once rather than per provider.
//
// Providers retry deliveries on any non-2xx response. Adapters therefore
// distinguish ErrInvalidSignature (reject, nothing trustworthy in the body)
// from per-event mapping problems: a malformed event inside a batch is
// skipped, not fatal, because failing the whole delivery would stall every
// other event in it.
//
// Billing-cycle inference is an ordered list of extraction strategies tried
// in sequence (explicit interval field, plan-name match, period-length
// delta) with a documented default, rather than ad hoc optional chaining.
// See cycle.go.
package billing
