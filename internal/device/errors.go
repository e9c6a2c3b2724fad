package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // treat entity as unavailable, not a crash
//	}
var (
	// ErrDeviceNotFound is returned when a device URL is absent from the
	// snapshot store, typically because the hub deregistered the device.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDispatchFailed is returned when the hub rejects or cannot be
	// reached for a submitted command. Commands are best-effort; callers
	// may log and ignore this error.
	ErrDispatchFailed = errors.New("device: command dispatch failed")

	// ErrRefreshFailed is returned when a forced refresh of the snapshot
	// store does not complete.
	ErrRefreshFailed = errors.New("device: refresh failed")

	// ErrEntityNotFound is returned when an entity stable identifier has no
	// registration.
	ErrEntityNotFound = errors.New("device: entity not found")
)
