// Package credits manages per-user credit balances with a bounded daily
// recharge and the one-time starter-kit eligibility flag.
//
// Recharge is self-healing rather than scheduled-only: every balance read
// first tops the user up if their last recharge was on a prior local day.
// The batch sweep applies the same logic for users who never log in. Both
// paths are idempotent per user per local day: the write is guarded by a
// compare on the previous recharge instant, so concurrent triggers apply
// the top-up at most once and the balance never exceeds the cap.
package credits
