package session

import "errors"

var (
	// ErrValidation indicates malformed input: empty participant sets,
	// unknown voters, items, or references. State is never mutated.
	ErrValidation = errors.New("invalid session input")
	// ErrStaleRound indicates a round-sequencing contract violation, such
	// as advancing a round that is still open.
	ErrStaleRound = errors.New("stale round")
)
