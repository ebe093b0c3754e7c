package session

import (
	"fmt"
	"time"

	"github.com/rpggio/accord/internal/domain/protocol"
)

// Status represents the lifecycle status of a negotiation. Transitions are
// one-way: negotiating is the only non-terminal status.
type Status string

const (
	StatusNegotiating Status = "negotiating"
	StatusConfirmed   Status = "confirmed"
	StatusEscalated   Status = "escalated"
)

// ProposalItem is one independently-votable dimension of a negotiation, such
// as "time" or "location". Options keep their proposal order; a nil vote
// means the participant has not chosen yet.
type ProposalItem struct {
	Options []string           `json:"options"`
	Votes   map[string]*string `json:"votes"`
}

// HistoryEntry records one state-changing move.
type HistoryEntry struct {
	Version int                    `json:"version"`
	Actor   string                 `json:"actor"`
	Action  protocol.SessionAction `json:"action"`
	Summary string                 `json:"summary"`
}

// Session is one scheduling negotiation between a fixed set of participants.
// Round bookkeeping lives on the entity itself so that concurrent
// negotiations never share controller state.
type Session struct {
	ID           string                  `json:"session_id"`
	Topic        string                  `json:"topic"`
	Participants []string                `json:"participants"`
	Initiator    string                  `json:"initiator"`
	Version      int                     `json:"version"`
	Proposals    map[string]ProposalItem `json:"proposals"`
	Status       Status                  `json:"status"`
	protocol.RoundState
	History   []HistoryEntry `json:"history"`
	CreatedAt time.Time      `json:"created_at"`
}

// New creates a negotiation waiting on round 1 replies; the opening proposal
// itself is round 0. Each item's options keep their given order and every
// participant starts unvoted.
func New(id, topic string, participants []string, initiator string, items map[string][]string) (*Session, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: participants must not be empty", ErrValidation)
	}
	s := &Session{
		ID:           id,
		Topic:        topic,
		Participants: append([]string(nil), participants...),
		Initiator:    initiator,
		Version:      1,
		Proposals:    make(map[string]ProposalItem, len(items)),
		Status:       StatusNegotiating,
		RoundState:   protocol.RoundState{CurrentRound: 1},
		CreatedAt:    time.Now().UTC(),
	}
	for name, options := range items {
		item := ProposalItem{
			Options: append([]string(nil), options...),
			Votes:   make(map[string]*string, len(participants)),
		}
		for _, p := range participants {
			item.Votes[p] = nil
		}
		s.Proposals[name] = item
	}
	return s, nil
}

// EnsureParticipant idempotently adds a late-joining voter: the address is
// appended to the participant set and given an unset vote slot on every
// existing proposal item. Calling it again with the same address is a no-op.
func (s *Session) EnsureParticipant(addr string) {
	for _, p := range s.Participants {
		if p == addr {
			return
		}
	}
	s.Participants = append(s.Participants, addr)
	for name, item := range s.Proposals {
		if item.Votes == nil {
			item.Votes = make(map[string]*string)
		}
		if _, ok := item.Votes[addr]; !ok {
			item.Votes[addr] = nil
		}
		s.Proposals[name] = item
	}
}

// IsParticipant reports whether addr is part of the negotiation.
func (s *Session) IsParticipant(addr string) bool {
	for _, p := range s.Participants {
		if p == addr {
			return true
		}
	}
	return false
}

// Terminal reports whether the negotiation has reached a final status.
func (s *Session) Terminal() bool {
	return s.Status != StatusNegotiating
}

// Touch bumps the version counter and appends a history entry. Every
// state-changing operation goes through here so the version stays strictly
// increasing.
func (s *Session) Touch(actor string, action protocol.SessionAction, summary string) {
	s.Version++
	s.History = append(s.History, HistoryEntry{
		Version: s.Version,
		Actor:   actor,
		Action:  action,
		Summary: summary,
	})
}
