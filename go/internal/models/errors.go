package models

import "errors"

// Error taxonomy shared by the coordinator and the transport. Callers wrap
// these with context and classify them with errors.Is.
var (
	// ErrValidation is returned for malformed or too-short input
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for an unknown session or player
	ErrNotFound = errors.New("not found")
	// ErrState is returned when an operation is invalid for the session status
	ErrState = errors.New("invalid state")
	// ErrAttemptsExhausted is returned once a player has used every guess or already won
	ErrAttemptsExhausted = errors.New("no more attempts allowed")
	// ErrPermission is returned when a player issues a command reserved for someone else
	ErrPermission = errors.New("permission denied")
	// ErrDuplicate is returned when a player id is already registered
	ErrDuplicate = errors.New("already exists")
)
