package store

import "errors"

// Domain errors for the store package.
//
//	if errors.Is(err, store.ErrApplianceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrApplianceNotFound is returned when an appliance ID does not exist.
	ErrApplianceNotFound = errors.New("store: appliance not found")

	// ErrApplianceExists is returned when creating an appliance whose ID is taken.
	ErrApplianceExists = errors.New("store: appliance already exists")

	// ErrInvalidAppliance is returned when an appliance row fails validation.
	ErrInvalidAppliance = errors.New("store: invalid appliance")

	// ErrInvalidRetention is returned by PruneHistory for a non-positive age.
	ErrInvalidRetention = errors.New("store: retention must be positive")
)
