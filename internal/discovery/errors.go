package discovery

import "errors"

var (
	// ErrNotFound is returned when no appliance matched before the timeout.
	ErrNotFound = errors.New("discovery: appliance not found")

	// ErrNoAddress is returned for an appliance announced without any
	// usable address.
	ErrNoAddress = errors.New("discovery: appliance has no address")
)
