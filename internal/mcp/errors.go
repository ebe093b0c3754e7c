package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
	"github.com/rpggio/accord/internal/repository"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &APIError{Code: "NOT_FOUND", Message: "no session or room with that ID", RecoveryHint: "List sessions or rooms to find valid IDs"}
	case errors.Is(err, session.ErrValidation):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "Check topic, participants, and proposal items"}
	case errors.Is(err, room.ErrValidation):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "Check topic, deadline, and participants"}
	case errors.Is(err, room.ErrRoomClosed):
		return &APIError{Code: "ROOM_CLOSED", Message: "room is locked or finalized", RecoveryHint: "Read the minutes; open a new room to renegotiate"}
	case errors.Is(err, session.ErrStaleRound):
		return &APIError{Code: "ROUND_OPEN", Message: "round still waiting on replies", RecoveryHint: "Wait for the next poll cycle"}
	default:
		return nil
	}
}
