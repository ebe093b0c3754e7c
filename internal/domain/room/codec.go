package room

import (
	"encoding/json"
	"fmt"
)

// ToJSON serializes the room; the round state flattens into the object.
func (r *Room) ToJSON() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode room %s: %w", r.ID, err)
	}
	return data, nil
}

// FromJSON deserializes a room previously produced by ToJSON.
func FromJSON(data []byte) (*Room, error) {
	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: decode room: %v", ErrValidation, err)
	}
	if len(r.Participants) == 0 {
		return nil, fmt.Errorf("%w: participants must not be empty", ErrValidation)
	}
	if r.Artifacts == nil {
		r.Artifacts = make(map[string]Artifact)
	}
	return &r, nil
}
