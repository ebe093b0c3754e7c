package room

import "errors"

var (
	// ErrValidation indicates malformed room input. State is never mutated.
	ErrValidation = errors.New("invalid room input")
	// ErrRoomClosed indicates a mutation attempt on a locked or finalized
	// room.
	ErrRoomClosed = errors.New("room closed")
	// ErrStaleRound indicates a round-sequencing contract violation.
	ErrStaleRound = errors.New("stale round")
)
