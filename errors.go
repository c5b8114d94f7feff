package streamchat

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a history failed validation.
	ErrValidation = errors.New("validation error")

	// ErrStreamClosed indicates an operation on a stream that was aborted.
	ErrStreamClosed = errors.New("stream closed")

	// ErrNotConnected indicates a send on a socket that is not open.
	ErrNotConnected = errors.New("not connected")
)
