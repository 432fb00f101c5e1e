package billing

import "errors"

var (
	// ErrInvalidSignature means the delivery failed signature verification.
	// Nothing in the payload may be trusted; no state is mutated.
	ErrInvalidSignature = errors.New("billing: webhook signature verification failed")

	// ErrMalformedPayload means the delivery body could not be decoded at all.
	ErrMalformedPayload = errors.New("billing: malformed webhook payload")

	// ErrMalformedEvent means a single event inside a batch payload could not
	// be mapped. Adapters skip such events and continue with the rest.
	ErrMalformedEvent = errors.New("billing: malformed webhook event")

	// ErrMissingSecret indicates an adapter was constructed without its
	// shared webhook secret.
	ErrMissingSecret = errors.New("billing: webhook secret is required")
)
