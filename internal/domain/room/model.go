package room

import (
	"fmt"
	"time"

	"github.com/rpggio/accord/internal/domain/protocol"
)

// Status is the lifecycle state of a room. Flow: open → locked → finalized.
type Status string

const (
	StatusOpen      Status = "open"
	StatusLocked    Status = "locked"
	StatusFinalized Status = "finalized"
)

// Policy names how a room's outcome is decided once the open phase closes.
type Policy string

const (
	PolicyMajority         Policy = "majority"
	PolicyUnanimous        Policy = "unanimous"
	PolicyInitiatorDecides Policy = "initiator_decides"
)

// MinutesArtifact is the reserved artifact name for the closing summary.
const MinutesArtifact = "minutes"

// Artifact is one named piece of negotiated content.
type Artifact struct {
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	UpdatedAt time.Time `json:"updated_at"`
	Kind      string    `json:"kind"`
}

// TranscriptEntry records one discussion move.
type TranscriptEntry struct {
	Version int                 `json:"version"`
	Actor   string              `json:"actor"`
	Action  protocol.RoomAction `json:"action"`
	Summary string              `json:"summary"`
}

// Room is one deadline-bounded content negotiation. It mirrors the session's
// round protocol but converges on artifacts instead of votes.
type Room struct {
	ID           string              `json:"room_id"`
	Topic        string              `json:"topic"`
	Deadline     time.Time           `json:"deadline"`
	Participants []string            `json:"participants"`
	Initiator    string              `json:"initiator"`
	Artifacts    map[string]Artifact `json:"artifacts"`
	Transcript   []TranscriptEntry   `json:"transcript"`
	Status       Status              `json:"status"`
	Policy       Policy              `json:"resolution_policy"`
	AcceptedBy   []string            `json:"accepted_by"`
	protocol.RoundState
	CreatedAt time.Time `json:"created_at"`
}

// New creates an open room in round 1 with no artifacts yet.
func New(id, topic string, deadline time.Time, participants []string, initiator string, policy Policy) (*Room, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: participants must not be empty", ErrValidation)
	}
	if policy == "" {
		policy = PolicyMajority
	}
	return &Room{
		ID:           id,
		Topic:        topic,
		Deadline:     deadline,
		Participants: append([]string(nil), participants...),
		Initiator:    initiator,
		Artifacts:    make(map[string]Artifact),
		Status:       StatusOpen,
		Policy:       policy,
		RoundState:   protocol.RoundState{CurrentRound: 1},
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// IsParticipant reports whether addr is part of the room.
func (r *Room) IsParticipant(addr string) bool {
	for _, p := range r.Participants {
		if p == addr {
			return true
		}
	}
	return false
}

// UpsertArtifact creates or replaces one named artifact. Mutation is only
// allowed while the room is open.
func (r *Room) UpsertArtifact(name, content, author, kind string) error {
	if r.Status != StatusOpen {
		return fmt.Errorf("%w: room %s is %s", ErrRoomClosed, r.ID, r.Status)
	}
	if name == "" {
		return fmt.Errorf("%w: artifact name is required", ErrValidation)
	}
	r.Artifacts[name] = Artifact{
		Content:   content,
		Author:    author,
		UpdatedAt: time.Now().UTC(),
		Kind:      kind,
	}
	return nil
}

// RecordAcceptance marks addr as having accepted the current proposal.
// Duplicate acceptances are deduplicated; non-participant acceptances are
// recorded but never count toward AllAccepted.
func (r *Room) RecordAcceptance(addr string) {
	for _, a := range r.AcceptedBy {
		if a == addr {
			return
		}
	}
	r.AcceptedBy = append(r.AcceptedBy, addr)
}

// AllAccepted reports whether every participant is in the acceptance set.
func (r *Room) AllAccepted() bool {
	if len(r.Participants) == 0 {
		return false
	}
	for _, p := range r.Participants {
		if !r.accepted(p) {
			return false
		}
	}
	return true
}

// IsPastDeadline reports whether now has reached the room's deadline.
func (r *Room) IsPastDeadline(now time.Time) bool {
	return !now.Before(r.Deadline)
}

// CloseTrigger returns the reason the open phase should close, if any.
// The deadline always wins over unanimous acceptance when both hold.
func (r *Room) CloseTrigger(now time.Time) (string, bool) {
	if r.Status != StatusOpen {
		return "", false
	}
	if r.IsPastDeadline(now) {
		return TriggerDeadline, true
	}
	if r.AllAccepted() {
		return TriggerAllAccepted, true
	}
	return "", false
}

// Close triggers for the open phase.
const (
	TriggerDeadline    = "deadline_expired"
	TriggerAllAccepted = "all_accepted"
)

// Lock closes the open phase. Artifact mutation is rejected from here on.
func (r *Room) Lock(trigger string) error {
	if r.Status != StatusOpen {
		return fmt.Errorf("%w: room %s is %s", ErrRoomClosed, r.ID, r.Status)
	}
	r.Status = StatusLocked
	r.AddTranscript(r.Initiator, protocol.RoomConfirm, "room locked: "+trigger)
	return nil
}

// Finalize produces the minutes artifact and moves the room to its terminal
// status. Only a locked room can finalize.
func (r *Room) Finalize(minutes, author string) error {
	if r.Status != StatusLocked {
		return fmt.Errorf("%w: room %s is %s, want locked", ErrRoomClosed, r.ID, r.Status)
	}
	r.Artifacts[MinutesArtifact] = Artifact{
		Content:   minutes,
		Author:    author,
		UpdatedAt: time.Now().UTC(),
		Kind:      "text/markdown",
	}
	r.Status = StatusFinalized
	r.AddTranscript(author, protocol.RoomConfirm, "minutes produced")
	return nil
}

// AddTranscript appends one discussion entry; versions are sequential.
func (r *Room) AddTranscript(actor string, action protocol.RoomAction, summary string) {
	r.Transcript = append(r.Transcript, TranscriptEntry{
		Version: len(r.Transcript) + 1,
		Actor:   actor,
		Action:  action,
		Summary: summary,
	})
}

// RecordRoundReply marks sender as having replied in the current round.
func (r *Room) RecordRoundReply(sender string) bool {
	return r.RecordReply(sender)
}

// IsRoundComplete applies the shared round-completion rule to the room.
func (r *Room) IsRoundComplete() bool {
	return r.IsComplete(r.Participants, r.Initiator)
}

// AdvanceRound closes the current round.
func (r *Room) AdvanceRound() error {
	terminal := r.Status != StatusOpen
	if err := r.Advance(r.Participants, r.Initiator, terminal); err != nil {
		return fmt.Errorf("%w: room %s round %d", ErrStaleRound, r.ID, r.CurrentRound)
	}
	return nil
}

func (r *Room) accepted(addr string) bool {
	for _, a := range r.AcceptedBy {
		if a == addr {
			return true
		}
	}
	return false
}
