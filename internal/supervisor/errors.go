package supervisor

import "errors"

// Domain errors for the supervisor package.
var (
	// ErrNoTarget is returned when Options.Target is nil.
	ErrNoTarget = errors.New("supervisor: target is required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("supervisor: already started")

	// ErrClosed is returned when Start is called after Close.
	ErrClosed = errors.New("supervisor: closed")
)
