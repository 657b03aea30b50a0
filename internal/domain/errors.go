package domain

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("session not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("not a participant of this session")

	// ErrCodeSpaceExhausted means every generated join code collided. It is a
	// configuration problem, not a user error.
	ErrCodeSpaceExhausted = errors.New("join code space exhausted")
)
