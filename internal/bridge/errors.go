package bridge

import "errors"

// Domain-specific errors for bridge operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlreadyStarted is returned when Start is called on a running manager.
	ErrAlreadyStarted = errors.New("bridge: manager already started")

	// ErrUnknownDevice is returned when a command targets an identifier
	// with no registry record.
	ErrUnknownDevice = errors.New("bridge: unknown device")

	// ErrInvalidTopic is returned for inbound topics that do not match the
	// <prefix>/<target>/<verb> addressing scheme.
	ErrInvalidTopic = errors.New("bridge: invalid command topic")

	// ErrInvalidPayload is returned when a set_position payload is not an
	// integer.
	ErrInvalidPayload = errors.New("bridge: invalid command payload")
)
