// Package mail is the email transport: it moves protocol messages over
// IMAP/SMTP, correlates them to negotiations through subject tags, and
// carries the structured state as a protocol.json attachment. The engine
// only sees the Transport interface; everything MIME-shaped stays here.
package mail

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Kind says which protocol family a message belongs to.
type Kind string

const (
	KindSession Kind = "session"
	KindRoom    Kind = "room"
)

// Inbound is one fetched message, already decoded from its wire form.
type Inbound struct {
	MessageID   string
	Sender      string
	SenderName  string
	Subject     string
	Body        string
	Payload     []byte // protocol.json attachment, nil for free-text replies
	Correlation string // session or room id from the subject tag
	Kind        Kind
	Date        time.Time

	// UID identifies the message on the underlying mailbox for Ack.
	// Zero for transports that have no per-message handle.
	UID uint32
}

// Outbound is one protocol message to deliver.
type Outbound struct {
	Recipients  []string
	Correlation string
	Kind        Kind
	Version     int
	Body        string
	Payload     []byte
}

// Transport moves messages over the underlying channel. A message stays
// eligible for fetching until Ack confirms it was durably stored, so
// implementations deliver at least once; deduplication is the durable
// inbox's job.
type Transport interface {
	// Address returns the agent's own address.
	Address() string
	// Fetch returns unread inbound messages, protocol-tagged or not.
	// Autoresponder and bounce mail is discarded here; it never reaches
	// the engine.
	Fetch(ctx context.Context) ([]Inbound, error)
	// Ack confirms the fetched messages were durably stored. Until then
	// subsequent Fetch calls return them again.
	Ack(ctx context.Context, msgs []Inbound) error
	// SendProtocol delivers a tagged protocol message with its payload.
	SendProtocol(ctx context.Context, out Outbound) error
	// SendHuman delivers a plain notification with no protocol payload.
	SendHuman(ctx context.Context, to []string, subject, body string) error
}

const (
	tagPrefix     = "[AIMP:"
	roomTagPrefix = "[AIMP:Room:"
)

var tagPattern = regexp.MustCompile(`\[AIMP:([^\]]+)\]`)

// SessionTag formats the subject tag correlating a message to a session.
func SessionTag(sessionID string) string {
	return tagPrefix + sessionID + "]"
}

// RoomTag formats the subject tag correlating a message to a room.
func RoomTag(roomID string) string {
	return roomTagPrefix + roomID + "]"
}

// ParseTag extracts the correlation id and protocol kind from a subject.
func ParseTag(subject string) (correlation string, kind Kind, ok bool) {
	m := tagPattern.FindStringSubmatch(subject)
	if m == nil {
		return "", "", false
	}
	id := strings.TrimSpace(m[1])
	if rest, isRoom := strings.CutPrefix(id, "Room:"); isRoom {
		return strings.TrimSpace(rest), KindRoom, true
	}
	return id, KindSession, true
}

// Tag returns the subject tag for an outbound message.
func (o Outbound) Tag() string {
	if o.Kind == KindRoom {
		return RoomTag(o.Correlation)
	}
	return SessionTag(o.Correlation)
}

// Subject builds the tagged subject line for an outbound message.
func (o Outbound) Subject() string {
	return fmt.Sprintf("%s negotiation v%d", o.Tag(), o.Version)
}
