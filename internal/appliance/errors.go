package appliance

import "errors"

// Domain errors for the appliance package.
var (
	// ErrConnectionFailed is returned when the appliance cannot be reached.
	ErrConnectionFailed = errors.New("appliance: connection failed")

	// ErrHandshake is returned when the session handshake fails.
	ErrHandshake = errors.New("appliance: handshake failed")

	// ErrAlreadyConnected is returned when another client already holds the
	// appliance's single session slot.
	ErrAlreadyConnected = errors.New("appliance: already connected to another client")

	// ErrNotConnected is returned when an operation requires a live session.
	ErrNotConnected = errors.New("appliance: not connected")

	// ErrRequestFailed is returned when the appliance answers a request with
	// a non-zero error code.
	ErrRequestFailed = errors.New("appliance: request failed")

	// ErrNotWritable is returned when writing to a read-only entity.
	ErrNotWritable = errors.New("appliance: entity is not writable")

	// ErrInvalidValue is returned when a value cannot be encoded for an entity.
	ErrInvalidValue = errors.New("appliance: invalid value")

	// ErrUnknownEntity is returned when an entity name or UID does not exist.
	ErrUnknownEntity = errors.New("appliance: unknown entity")

	// ErrUnknownProgram is returned when a program name or UID does not exist.
	ErrUnknownProgram = errors.New("appliance: unknown program")

	// ErrInvalidDescription is returned when a capability description
	// document is malformed.
	ErrInvalidDescription = errors.New("appliance: invalid description")

	// ErrNoDeviceInfo is returned when a description has no device info.
	ErrNoDeviceInfo = errors.New("appliance: description has no device info")
)
