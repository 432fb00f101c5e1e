package billing

import "context"

// Provider verifies and normalizes webhook deliveries from one payment
// provider. Implementations must be safe for concurrent use.
//
// VerifyAndParse returns ErrInvalidSignature when the delivery cannot be
// authenticated and ErrMalformedPayload when the body cannot be decoded;
// in both cases no events are returned. A decodable batch with some
// unmappable events returns the mappable ones; dropping one event is
// better than stalling the provider's whole delivery queue.
type Provider interface {
	// Name is the stable identifier used in webhook routes and event logs.
	Name() string

	// SignatureHeader is the HTTP header the provider delivers its
	// signature in.
	SignatureHeader() string

	// VerifyAndParse authenticates the raw delivery against the signature
	// header value and maps it into normalized events. Some providers batch
	// several events per delivery.
	VerifyAndParse(ctx context.Context, payload []byte, signature string) ([]Event, error)
}
