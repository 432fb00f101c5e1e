// Package reconcile downgrades subscriptions whose grace period has ended.
//
// Webhooks carry no "grace period over" signal, so a periodic sweep walks
// canceled records past their paid-through instant and demotes them to the
// free tier. The sweep is re-entrant and idempotent: demoting an already
// free user writes the same state again.
package reconcile
