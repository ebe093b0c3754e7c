// Package oracle is the policy oracle boundary: the engine hands over
// current negotiation state and gets back a single structured decision. How
// the decision is produced — an LLM, a rule table, a human — is invisible to
// the engine.
package oracle

import (
	"context"

	"github.com/rpggio/accord/internal/domain/protocol"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
)

// Decision is one scheduling move: which options to vote for, optionally
// which new options to put on the table, and why.
type Decision struct {
	Action     protocol.SessionAction `json:"action"`
	Votes      map[string]string      `json:"votes,omitempty"`
	NewOptions map[string][]string    `json:"new_options,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
}

// RoomDecision is one content-negotiation move.
type RoomDecision struct {
	Action   protocol.RoomAction `json:"action"`
	Artifact string              `json:"artifact,omitempty"`
	Content  string              `json:"content,omitempty"`
	Reason   string              `json:"reason,omitempty"`
}

// Oracle produces decisions and interprets free-text replies. Called once
// per participant-turn; implementations must be synchronous and leave
// retry/backoff to their own transport concerns.
type Oracle interface {
	// Decide returns the agent's own next scheduling move.
	Decide(ctx context.Context, sess *session.Session) (Decision, error)
	// ParseReply turns a counterparty's free-text reply into votes.
	ParseReply(ctx context.Context, sess *session.Session, sender, text string) (Decision, error)
	// DecideRoom returns the agent's own next content move.
	DecideRoom(ctx context.Context, rm *room.Room) (RoomDecision, error)
	// ParseRoomReply turns a free-text room reply into a structured move.
	ParseRoomReply(ctx context.Context, rm *room.Room, sender, text string) (RoomDecision, error)
	// Minutes produces the closing summary for a locked room.
	Minutes(ctx context.Context, rm *room.Room) (string, error)
}
