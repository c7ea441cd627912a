package exchange

import "errors"

// Errors returned by Send. Message decode failures are reported as errors
// matching message.ErrMalformed.
var (
	// ErrNoResponse is returned when no acceptable reply arrived before the
	// exchange timeout, or when the radio driver failed outright.
	ErrNoResponse = errors.New("exchange: no response")

	// ErrUnexpectedPacketType is returned when a continuation was requested
	// but the pod answered with another frame type.
	ErrUnexpectedPacketType = errors.New("exchange: unexpected packet type")

	// ErrPeerAcknowledged is returned when the pod acknowledged the final
	// fragment instead of answering it. The request is not retried.
	ErrPeerAcknowledged = errors.New("exchange: pod acknowledged instead of responding")

	// ErrEmptyResponse is returned when the reply message has no blocks.
	ErrEmptyResponse = errors.New("exchange: empty response")
)

// Usage errors, reported outside the protocol taxonomy.
var (
	// ErrSessionBusy is returned when Send is called while another Send on
	// the same session is running.
	ErrSessionBusy = errors.New("exchange: session busy")

	// ErrInvalidMessage is returned by Send when the request cannot be
	// encoded. It wraps message.ErrMessageTooLong or message.ErrBlockTooLong.
	ErrInvalidMessage = errors.New("exchange: invalid message")

	// ErrNoRadio is returned by NewSession when no radio is configured.
	ErrNoRadio = errors.New("exchange: radio required")

	// ErrInvalidParams is returned by NewSession for out-of-range timing.
	ErrInvalidParams = errors.New("exchange: invalid params")
)
