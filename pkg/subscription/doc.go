// Package subscription owns the authoritative per-user subscription state
// and the only two write paths into it: normalized billing events and the
// user-initiated link flow.
//
// Webhooks from three providers arrive concurrently, out of order, and are
// redelivered on any failure. The package stays correct under that traffic
// by making every event write absolute: the event alone determines the full
// (plan, status, ends-at) state, so a duplicate delivery rewrites identical
// values and out-of-order deliveries converge once the last one lands.
// No read-modify-write sequence exists on this path.
//
// The link flow is the exception: it must check before it overwrites, so a
// user pasting an order id cannot stomp a status a webhook already
// progressed past.
package subscription
