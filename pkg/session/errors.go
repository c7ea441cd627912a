package session

import "errors"

// Session package errors.
var (
	// ErrInvalidState is returned when a counter is outside its range.
	ErrInvalidState = errors.New("session: invalid state")

	// ErrNotFound is returned by Store.Load when nothing has been saved yet.
	ErrNotFound = errors.New("session: state not found")

	// ErrCorrupt is returned by FileStore.Load when the record fails its
	// integrity check or cannot be decoded.
	ErrCorrupt = errors.New("session: state record corrupt")
)
