package ble

import "errors"

// Domain-specific errors for BLE operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAdapterUnavailable is returned when the host Bluetooth adapter
	// cannot be enabled.
	ErrAdapterUnavailable = errors.New("ble: adapter unavailable")

	// ErrNotConnected is returned when sending a command on a session
	// without a live transport.
	ErrNotConnected = errors.New("ble: session not connected")

	// ErrAddressUnknown is returned when connecting to an identifier the
	// central has never seen advertise.
	ErrAddressUnknown = errors.New("ble: device address unknown")

	// ErrServiceNotFound is returned when a connected device does not
	// expose the AM43 control service.
	ErrServiceNotFound = errors.New("ble: control service not found")

	// ErrCharacteristicNotFound is returned when the control service does
	// not expose the expected characteristic.
	ErrCharacteristicNotFound = errors.New("ble: control characteristic not found")
)
