package hass

import "errors"

// Domain errors for the hass package.
var (
	// ErrNoClient is returned when Options.Client is nil.
	ErrNoClient = errors.New("hass: mqtt client is required")

	// ErrClosed is returned when entities are registered after Close.
	ErrClosed = errors.New("hass: host closed")
)
