// Package character decides which of a user's characters are accessible
// and which are locked, and keeps the active-character pointer valid as
// slots shrink and characters are deleted.
//
// Lock state is never persisted. It is derived at read time from the
// resolved slot count and creation order: the oldest N characters are
// accessible, the rest locked. Persisting an is_locked column would be a
// second source of truth that drifts from the subscription state; deriving
// it removes that whole class of bug. Locking is non-destructive; a locked
// character and its history come back untouched when slots increase.
package character
