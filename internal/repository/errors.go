package repository

import "errors"

var (
	// ErrNotFound marks a lookup for an entity the store has never seen.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks an entity the store refuses to persist.
	ErrInvalidInput = errors.New("invalid input")
)
