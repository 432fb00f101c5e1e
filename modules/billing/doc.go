// Package billing is the HTTP surface of the entitlement engine: webhook
// intake for each payment provider, checkout and linking for signed-in
// users, read-only entitlement/usage/credit queries, and the internal
// reconciliation trigger.
//
// Webhook endpoints answer 200 for both applied and intentionally dropped
// events; only an unauthenticated delivery (400) or an infrastructure
// failure (500) tells the provider to retry.
package billing
