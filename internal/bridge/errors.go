package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrNoAppliance is returned when Options.Appliance is nil.
	ErrNoAppliance = errors.New("bridge: appliance is required")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("bridge: already started")

	// ErrNotStarted is returned by operations that need a running bridge.
	ErrNotStarted = errors.New("bridge: not started")

	// ErrEntityNotFound is returned when no projected entity has the key.
	ErrEntityNotFound = errors.New("bridge: entity not found")

	// ErrApplianceNotFound is returned when no bridge has the device ID.
	ErrApplianceNotFound = errors.New("bridge: appliance not found")

	// ErrDuplicateAppliance is returned when two bridges share a device ID.
	ErrDuplicateAppliance = errors.New("bridge: duplicate appliance")

	// ErrNoHost is returned when an appliance has no host and discovery
	// is unavailable.
	ErrNoHost = errors.New("bridge: appliance host unknown")
)
