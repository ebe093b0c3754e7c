package engine

// EventType classifies what a poll cycle produced.
type EventType string

const (
	EventReplySent     EventType = "reply_sent"
	EventConsensus     EventType = "consensus"
	EventEscalation    EventType = "escalation"
	EventRoomLocked    EventType = "room_locked"
	EventRoomFinalized EventType = "room_finalized"
	EventRoomVeto      EventType = "room_veto"
	EventIgnored       EventType = "ignored"
	EventError         EventType = "error"
)

// Event is one externally visible outcome of a cycle. The CLI prints these
// as one JSON object per line.
type Event struct {
	Type       EventType         `json:"type"`
	SessionID  string            `json:"session_id,omitempty"`
	RoomID     string            `json:"room_id,omitempty"`
	Round      int               `json:"round,omitempty"`
	Trigger    string            `json:"trigger,omitempty"`
	Resolution map[string]string `json:"resolution,omitempty"`
	Detail     string            `json:"detail,omitempty"`
}
