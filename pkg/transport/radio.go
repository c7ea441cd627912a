// Package transport defines the radio driver boundary and an in-memory
// simulated radio link for tests and the CLI.
package transport

import "time"

// MaxFrameSize is the largest frame the link carries.
const MaxFrameSize = 64

// Radio is the half-duplex radio driver the transport session drives.
//
// SendAndListen transmits data with repeatCount extra copies and a preamble
// extended by preambleExtension, then listens up to timeout for one frame.
// If nothing is heard it repeats the whole send-and-listen up to retryCount
// more times. When every listen window passes in silence it returns an error
// matching ErrResponseTimeout. Any other error is a driver failure.
//
// Calls block and must not overlap.
type Radio interface {
	SendAndListen(data []byte, repeatCount int, timeout time.Duration, retryCount int, preambleExtension time.Duration) ([]byte, error)
}

// RadioFunc adapts a function to Radio.
type RadioFunc func(data []byte, repeatCount int, timeout time.Duration, retryCount int, preambleExtension time.Duration) ([]byte, error)

// SendAndListen calls f.
func (f RadioFunc) SendAndListen(data []byte, repeatCount int, timeout time.Duration, retryCount int, preambleExtension time.Duration) ([]byte, error) {
	return f(data, repeatCount, timeout, retryCount, preambleExtension)
}
