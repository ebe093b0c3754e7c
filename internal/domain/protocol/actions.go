package protocol

// SessionAction is the closed action vocabulary for scheduling negotiations.
type SessionAction string

const (
	SessionPropose  SessionAction = "propose"
	SessionCounter  SessionAction = "counter"
	SessionAccept   SessionAction = "accept"
	SessionConfirm  SessionAction = "confirm"
	SessionEscalate SessionAction = "escalate"
)

// Valid reports whether a is a known session action.
func (a SessionAction) Valid() bool {
	switch a {
	case SessionPropose, SessionCounter, SessionAccept, SessionConfirm, SessionEscalate:
		return true
	}
	return false
}

// RoomAction is the closed action vocabulary for room negotiations.
type RoomAction string

const (
	RoomPropose RoomAction = "PROPOSE"
	RoomAmend   RoomAction = "AMEND"
	RoomAccept  RoomAction = "ACCEPT"
	RoomReject  RoomAction = "REJECT"
	// RoomConfirm applies only to the minutes veto window after a room
	// is locked; inside the open phase it is not a valid move.
	RoomConfirm RoomAction = "CONFIRM"
)

// Valid reports whether a is a known room action.
func (a RoomAction) Valid() bool {
	switch a {
	case RoomPropose, RoomAmend, RoomAccept, RoomReject, RoomConfirm:
		return true
	}
	return false
}
