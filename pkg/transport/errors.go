package transport

import "errors"

// Transport errors.
var (
	// ErrResponseTimeout is returned by a Radio when nothing was heard within
	// the listen window. The exchange layer treats it as line noise.
	ErrResponseTimeout = errors.New("transport: response timeout")

	// ErrClosed is returned when an operation is attempted on a closed pipe.
	ErrClosed = errors.New("transport: closed")

	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("transport: frame too large")
)
