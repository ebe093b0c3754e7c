package protocol

import "errors"

// MaxRounds is the round ceiling: a negotiation still unresolved when the
// round counter reaches this value is considered stalled and must escalate.
const MaxRounds = 5

// ErrRoundOpen is returned when a round is advanced before it is complete.
var ErrRoundOpen = errors.New("round not complete")

// RoundState is the per-entity round bookkeeping embedded in each
// negotiation. Round 0 is the initiator's opening proposal; round 1 waits on
// every participant except the initiator; every later round waits on all
// participants, initiator included.
type RoundState struct {
	CurrentRound int      `json:"current_round"`
	Respondents  []string `json:"round_respondents"`
}

// RecordReply marks addr as having replied in the current round. Recording
// the same address twice has no additional effect. Addresses outside the
// required-responder set are still recorded; stray and duplicate replies are
// tolerated, never an error. Returns true when the reply was new.
func (r *RoundState) RecordReply(addr string) bool {
	for _, a := range r.Respondents {
		if a == addr {
			return false
		}
	}
	r.Respondents = append(r.Respondents, addr)
	return true
}

// RequiredResponders returns the addresses whose replies close the current
// round.
func (r *RoundState) RequiredResponders(participants []string, initiator string) []string {
	if r.CurrentRound <= 1 {
		required := make([]string, 0, len(participants))
		for _, p := range participants {
			if p != initiator {
				required = append(required, p)
			}
		}
		return required
	}
	return append([]string(nil), participants...)
}

// IsComplete reports whether every required responder for the current round
// has replied.
func (r *RoundState) IsComplete(participants []string, initiator string) bool {
	required := r.RequiredResponders(participants, initiator)
	for _, addr := range required {
		if !r.hasReplied(addr) {
			return false
		}
	}
	return true
}

// Advance moves to the next round and clears the reply set. It is only valid
// once the current round is complete; terminal negotiations may force the
// advance regardless.
func (r *RoundState) Advance(participants []string, initiator string, terminal bool) error {
	if !terminal && !r.IsComplete(participants, initiator) {
		return ErrRoundOpen
	}
	r.CurrentRound++
	r.Respondents = nil
	return nil
}

func (r *RoundState) hasReplied(addr string) bool {
	for _, a := range r.Respondents {
		if a == addr {
			return true
		}
	}
	return false
}
