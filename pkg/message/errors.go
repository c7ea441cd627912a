package message

import (
	"errors"
	"fmt"
)

// Message layer errors.
var (
	// ErrNeedsMoreData is returned while the buffer is shorter than the message
	// its header announces. It is not a failure: append the next continuation
	// and decode again.
	ErrNeedsMoreData = errors.New("message: needs more data")

	// ErrMalformed is matched by every decode failure that more data cannot fix.
	ErrMalformed = errors.New("message: malformed")

	// ErrInvalidCRC is returned when the CRC-16 does not match.
	ErrInvalidCRC = errors.New("message: invalid crc")

	// ErrBlockTooShort is returned when a block is shorter than its type requires.
	ErrBlockTooShort = errors.New("message: block too short")

	// ErrMessageTooLong is returned by Encode when the blocks exceed MaxBodySize.
	ErrMessageTooLong = errors.New("message: exceeds maximum size")

	// ErrBlockTooLong is returned by Encode when a length-prefixed block body
	// exceeds MaxBlockBodySize.
	ErrBlockTooLong = errors.New("message: block body too long")
)

// DecodeError describes a malformed message. It matches both ErrMalformed and
// the underlying cause with errors.Is.
type DecodeError struct {
	// Offset is the byte offset into the block area where decoding failed,
	// or -1 for whole-message failures such as a CRC mismatch.
	Offset int

	// Err is the cause.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%v: %v", ErrMalformed, e.Err)
	}
	return fmt.Sprintf("%v at block offset %d: %v", ErrMalformed, e.Offset, e.Err)
}

// Unwrap exposes both ErrMalformed and the cause.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformed, e.Err}
}
