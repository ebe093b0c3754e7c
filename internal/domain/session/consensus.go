package session

import (
	"fmt"

	"github.com/rpggio/accord/internal/domain/protocol"
)

// ApplyVote records voter's choice for one proposal item. A choice outside
// the item's option set is first appended to it, which is how
// counter-proposals introduce new options. The version is bumped and a
// history entry appended; resolution is not checked here.
func (s *Session) ApplyVote(voter, item, choice string) error {
	if !s.IsParticipant(voter) {
		return fmt.Errorf("%w: unknown voter %q", ErrValidation, voter)
	}
	prop, ok := s.Proposals[item]
	if !ok {
		return fmt.Errorf("%w: unknown item %q", ErrValidation, item)
	}
	action := protocol.SessionAccept
	if !containsOption(prop.Options, choice) {
		prop.Options = append(prop.Options, choice)
		action = protocol.SessionCounter
	}
	if prop.Votes == nil {
		prop.Votes = make(map[string]*string)
	}
	c := choice
	prop.Votes[voter] = &c
	s.Proposals[item] = prop
	s.Touch(voter, action, fmt.Sprintf("%s=%s", item, choice))
	return nil
}

// AddOptions appends unseen options to one proposal item without voting for
// them. Known options are skipped; when anything was added the version bumps
// with a counter history entry.
func (s *Session) AddOptions(actor, item string, options []string) error {
	prop, ok := s.Proposals[item]
	if !ok {
		return fmt.Errorf("%w: unknown item %q", ErrValidation, item)
	}
	added := 0
	for _, opt := range options {
		if !containsOption(prop.Options, opt) {
			prop.Options = append(prop.Options, opt)
			added++
		}
	}
	if added == 0 {
		return nil
	}
	s.Proposals[item] = prop
	s.Touch(actor, protocol.SessionCounter, fmt.Sprintf("%s: %d new option(s)", item, added))
	return nil
}

// CheckConsensus returns, per item, the value every participant voted for.
// Items with any missing or diverging vote are absent from the result;
// partial resolution mid-negotiation is expected.
func (s *Session) CheckConsensus() map[string]string {
	resolved := make(map[string]string)
	for name, item := range s.Proposals {
		if value, ok := itemConsensus(item, s.Participants); ok {
			resolved[name] = value
		}
	}
	return resolved
}

// IsFullyResolved reports whether every proposal item has unanimous votes.
func (s *Session) IsFullyResolved() bool {
	for _, item := range s.Proposals {
		if _, ok := itemConsensus(item, s.Participants); !ok {
			return false
		}
	}
	return true
}

// IsStalled reports whether the round ceiling has been reached without full
// resolution.
func (s *Session) IsStalled() bool {
	return s.CurrentRound >= protocol.MaxRounds && !s.IsFullyResolved() && !s.Terminal()
}

// Confirm moves the negotiation to its confirmed terminal status.
func (s *Session) Confirm(actor string) error {
	if s.Terminal() {
		return fmt.Errorf("%w: session %s already %s", ErrValidation, s.ID, s.Status)
	}
	s.Status = StatusConfirmed
	s.Touch(actor, protocol.SessionConfirm, "consensus reached")
	return nil
}

// Escalate moves the negotiation to its escalated terminal status.
func (s *Session) Escalate(actor, reason string) error {
	if s.Terminal() {
		return fmt.Errorf("%w: session %s already %s", ErrValidation, s.ID, s.Status)
	}
	s.Status = StatusEscalated
	s.Touch(actor, protocol.SessionEscalate, reason)
	return nil
}

// RecordRoundReply marks sender as having replied in the current round.
// Duplicate and stray senders are tolerated. Returns true for a new reply.
func (s *Session) RecordRoundReply(sender string) bool {
	return s.RecordReply(sender)
}

// IsRoundComplete reports whether every required responder for the current
// round has replied: all non-initiators for round 1, everyone for later
// rounds.
func (s *Session) IsRoundComplete() bool {
	return s.IsComplete(s.Participants, s.Initiator)
}

// AdvanceRound closes the current round: the counter is incremented and the
// reply set cleared. Advancing an open round on a live negotiation is a
// sequencing bug and fails with ErrStaleRound.
func (s *Session) AdvanceRound() error {
	if err := s.Advance(s.Participants, s.Initiator, s.Terminal()); err != nil {
		return fmt.Errorf("%w: session %s round %d", ErrStaleRound, s.ID, s.CurrentRound)
	}
	return nil
}

func itemConsensus(item ProposalItem, participants []string) (string, bool) {
	var value string
	for i, p := range participants {
		v := item.Votes[p]
		if v == nil {
			return "", false
		}
		if i == 0 {
			value = *v
		} else if *v != value {
			return "", false
		}
	}
	return value, len(participants) > 0
}

func containsOption(options []string, choice string) bool {
	for _, o := range options {
		if o == choice {
			return true
		}
	}
	return false
}
