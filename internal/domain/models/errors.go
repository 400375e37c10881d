package models

import "errors"

var (
	// ErrNotFound reports a missing user, config or job.
	ErrNotFound = errors.New("not found")
	// ErrInvalidParameter reports an algorithm or request constraint violation.
	ErrInvalidParameter = errors.New("invalid parameter")
)
