// Package entitlement derives what a user is currently allowed from their
// subscription state: how many character slots they may use and whether
// premium features are available.
//
// Resolve is a pure function over (plan, status, ends-at, now). It is cheap
// enough to recompute on every access check, so callers should never cache
// and trust its output across subscription-state changes. The cached
// character_slots column on the user row is a denormalization for display
// only; this package is the source of truth.
package entitlement
