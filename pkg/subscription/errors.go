package subscription

import "errors"

var (
	// ErrNotFound means no subscription record exists for the user.
	ErrNotFound = errors.New("subscription: record not found")

	// ErrUnresolvableUser means an event carried no usable identity and
	// none of the fallbacks matched. Expected during normal operation
	// (providers retry, lookups race); callers log and acknowledge the
	// delivery rather than failing it.
	ErrUnresolvableUser = errors.New("subscription: event user not resolvable")

	// ErrAlreadyLinked means the subscription id is already attached to the
	// user. An idempotent no-op, not a failure.
	ErrAlreadyLinked = errors.New("subscription: already linked")
)
