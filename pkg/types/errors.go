package types

import "errors"

// Envelope parsing errors.
var (
	ErrMalformedEvent   = errors.New("malformed event frame")
	ErrUnknownEventType = errors.New("unknown event type")
)
