package domain

import "errors"

var (
	// ErrNotInitialized is returned when the history store or usage counters
	// are read before the process-wide Initialize call.
	ErrNotInitialized = errors.New("tool history not initialized")

	// ErrInvalidFilter rejects malformed query input before any store access.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidInvocation rejects a recorded call that cannot become a Record.
	ErrInvalidInvocation = errors.New("invalid invocation")

	// ErrMissingConnection is returned by fleet queries without a connection id.
	ErrMissingConnection = errors.New("no connection id available")

	// ErrUnknownConnection is returned when a connection id resolves to nothing.
	ErrUnknownConnection = errors.New("unknown connection")
)
