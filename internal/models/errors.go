package models

import "errors"

// Persistence errors shared across repositories.
var (
	// ErrConflict is returned when a unique constraint (email, username,
	// slug) is violated.
	ErrConflict = errors.New("resource already exists")
)
