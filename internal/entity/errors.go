package entity

import (
	"errors"
	"fmt"
)

// Domain errors for the entity package.
var (
	// ErrMissingCapability is returned when a description references a
	// capability the appliance does not have.
	ErrMissingCapability = errors.New("entity: missing capability")

	// ErrInvalidDescription is returned when a description is malformed.
	ErrInvalidDescription = errors.New("entity: invalid description")

	// ErrNoAppliance is returned when Deps has no appliance.
	ErrNoAppliance = errors.New("entity: appliance is required")

	// ErrValidation is the base of all user-input errors.
	ErrValidation = errors.New("entity: validation failed")
)

// ValidationError is a user-facing input error. It is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
