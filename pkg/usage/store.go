package usage

import "context"

// Store persists daily counters.
//
// Incr must be a single atomic operation in the backing store; a
// read-then-write sequence would let two concurrent successful generations
// land on the same stale count.
type Store interface {
	// Count returns the current value for a counter; missing counters are 0.
	Count(ctx context.Context, key Key) (int64, error)

	// Incr atomically adds delta and returns the new value.
	Incr(ctx context.Context, key Key, delta int64) (int64, error)
}
