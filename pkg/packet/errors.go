package packet

import "errors"

// Packet decoding errors. None of them means the peer disagrees with us; the
// exchange loop treats all of them as line noise.
var (
	// ErrInsufficientData is returned when the frame is too short to hold the
	// header and CRC.
	ErrInsufficientData = errors.New("packet: insufficient data")

	// ErrIntegrityCheckFailed is returned when the CRC-8 does not match.
	ErrIntegrityCheckFailed = errors.New("packet: integrity check failed")

	// ErrUnknownFrameType is returned when the type bits name no known frame type.
	ErrUnknownFrameType = errors.New("packet: unknown frame type")
)
