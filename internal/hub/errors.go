package hub

import "errors"

// Domain-specific errors for hub gateway operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotStarted is returned when a request is issued before Start().
	ErrNotStarted = errors.New("hub: client not started")

	// ErrTimeout is returned when the gateway does not answer in time.
	ErrTimeout = errors.New("hub: request timed out")

	// ErrRejected is returned when the gateway answers with success=false.
	ErrRejected = errors.New("hub: request rejected")

	// ErrBadResponse is returned when a gateway response cannot be used.
	ErrBadResponse = errors.New("hub: bad response")
)
