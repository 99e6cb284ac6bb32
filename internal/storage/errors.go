package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an append-only store receives a key it
	// already holds.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorruptState is returned when a persisted agent state cannot be decoded.
	// Callers treat it as no prior state and warn.
	ErrCorruptState = errors.New("corrupt agent state")
)
