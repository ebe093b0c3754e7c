package inbox

import "time"

// PendingMessage is one durably-recorded inbound message. Every message is
// persisted before any interpretation happens; the processed flag is the only
// field that ever mutates afterwards.
type PendingMessage struct {
	ID          string    `json:"id"`
	Sender      string    `json:"sender"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Payload     []byte    `json:"payload,omitempty"`
	Correlation string    `json:"correlation,omitempty"`
	Processed   bool      `json:"processed"`
	ArrivedAt   time.Time `json:"arrived_at"`
}
