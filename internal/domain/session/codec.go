package session

import (
	"encoding/json"
	"fmt"
)

// ToJSON serializes the session. The embedded round state is flattened into
// the object so the wire form carries current_round and round_respondents as
// plain fields.
func (s *Session) ToJSON() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return data, nil
}

// FromJSON deserializes a session previously produced by ToJSON. The
// round-trip is lossless.
func FromJSON(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: decode session: %v", ErrValidation, err)
	}
	if len(s.Participants) == 0 {
		return nil, fmt.Errorf("%w: participants must not be empty", ErrValidation)
	}
	return &s, nil
}
