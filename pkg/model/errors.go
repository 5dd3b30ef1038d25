package model

import "github.com/m-mizutani/goerr/v2"

// Error categories. Concrete errors wrap one of these so that callers can
// branch with errors.Is.
var (
	// ErrConfiguration means required credentials or settings are missing.
	// It is raised before any network or device access.
	ErrConfiguration = goerr.New("configuration error")

	// ErrDevice means the microphone or speaker could not be acquired.
	ErrDevice = goerr.New("device error")

	// ErrTransport means the streaming channel to the speech model failed or closed.
	ErrTransport = goerr.New("transport error")

	// ErrToolExecution means a tool call failed. It never leaves the dispatcher.
	ErrToolExecution = goerr.New("tool execution error")

	// ErrProviderAuth means the calendar provider rejected the credentials (401/403).
	ErrProviderAuth = goerr.New("provider authorization error")

	ErrInvalidBooking  = goerr.New("invalid booking request")
	ErrProfileNotFound = goerr.New("profile not found")
)
