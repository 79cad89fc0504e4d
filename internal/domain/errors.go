package domain

import "errors"

var (
	// ErrSessionNotFound: the session (or relay target) does not exist.
	// Recoverable, reported to the caller, no state change.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidMessage: malformed request. Recoverable, reported to the
	// caller, no state change.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnauthorized: connection-time credential check failed. The
	// connection is rejected before any state is created.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConnectionClosed: the connection was released while an operation
	// on its behalf was in flight. The operation is rolled back.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrIDSpaceExhausted: could not generate a fresh session identifier.
	// Fatal, logged, the operation aborts.
	ErrIDSpaceExhausted = errors.New("session id space exhausted")
)
