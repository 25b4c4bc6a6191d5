package catalog

import "errors"

// Domain errors for the catalog package.
var (
	// ErrInvalidCatalog is returned when catalog YAML cannot be parsed or
	// an entry fails validation.
	ErrInvalidCatalog = errors.New("catalog: invalid catalog")

	// ErrUnknownKind is returned for a top-level group that is not an
	// entity kind.
	ErrUnknownKind = errors.New("catalog: unknown entity kind")

	// ErrUnknownDerivation is returned when an extra attribute names a
	// derivation function that is not registered.
	ErrUnknownDerivation = errors.New("catalog: unknown derivation")
)
