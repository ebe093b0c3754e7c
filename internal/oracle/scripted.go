package oracle

import (
	"context"
	"sync"

	"github.com/rpggio/accord/internal/domain/protocol"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
)

// Scripted is a deterministic Oracle for tests: decisions are consumed from
// queues in FIFO order, falling back to accept-everything when a queue runs
// dry.
type Scripted struct {
	mu            sync.Mutex
	decisions     []Decision
	replies       []Decision
	roomDecisions []RoomDecision
	roomReplies   []RoomDecision
	minutes       string

	// ParsedReplies records every free-text reply handed to ParseReply.
	ParsedReplies []string
}

// NewScripted creates an empty scripted oracle.
func NewScripted() *Scripted {
	return &Scripted{minutes: "minutes: negotiation closed"}
}

// QueueDecision appends a decision for Decide.
func (s *Scripted) QueueDecision(d Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
}

// QueueReply appends a decision for ParseReply.
func (s *Scripted) QueueReply(d Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, d)
}

// QueueRoomDecision appends a decision for DecideRoom.
func (s *Scripted) QueueRoomDecision(d RoomDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomDecisions = append(s.roomDecisions, d)
}

// QueueRoomReply appends a decision for ParseRoomReply.
func (s *Scripted) QueueRoomReply(d RoomDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomReplies = append(s.roomReplies, d)
}

// SetMinutes sets the text Minutes returns.
func (s *Scripted) SetMinutes(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minutes = text
}

func (s *Scripted) Decide(ctx context.Context, sess *session.Session) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.decisions) > 0 {
		d := s.decisions[0]
		s.decisions = s.decisions[1:]
		return d, nil
	}
	return Decision{Action: protocol.SessionAccept}, nil
}

func (s *Scripted) ParseReply(ctx context.Context, sess *session.Session, sender, text string) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ParsedReplies = append(s.ParsedReplies, text)
	if len(s.replies) > 0 {
		d := s.replies[0]
		s.replies = s.replies[1:]
		return d, nil
	}
	return Decision{Action: protocol.SessionAccept}, nil
}

func (s *Scripted) DecideRoom(ctx context.Context, rm *room.Room) (RoomDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.roomDecisions) > 0 {
		d := s.roomDecisions[0]
		s.roomDecisions = s.roomDecisions[1:]
		return d, nil
	}
	return RoomDecision{Action: protocol.RoomAccept}, nil
}

func (s *Scripted) ParseRoomReply(ctx context.Context, rm *room.Room, sender, text string) (RoomDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.roomReplies) > 0 {
		d := s.roomReplies[0]
		s.roomReplies = s.roomReplies[1:]
		return d, nil
	}
	return RoomDecision{Action: protocol.RoomAccept}, nil
}

func (s *Scripted) Minutes(ctx context.Context, rm *room.Room) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minutes, nil
}
