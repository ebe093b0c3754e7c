package mail

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		wantID  string
		wantKay Kind
		wantOK  bool
	}{
		{"session tag", "[AIMP:sess-42] negotiation v1", "sess-42", KindSession, true},
		{"room tag", "[AIMP:Room:standup] negotiation v2", "standup", KindRoom, true},
		{"reply prefix preserved", "Re: [AIMP:sess-42] negotiation v1", "sess-42", KindSession, true},
		{"tag mid-subject", "Fwd: re: [AIMP:Room:offsite] minutes", "offsite", KindRoom, true},
		{"no tag", "lunch on friday?", "", "", false},
		{"empty subject", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, kind, ok := ParseTag(tt.subject)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantKay, kind)
		})
	}
}

func TestOutboundSubject(t *testing.T) {
	out := Outbound{Correlation: "sess-1", Kind: KindSession, Version: 3}
	assert.Equal(t, "[AIMP:sess-1]", out.Tag())
	assert.Equal(t, "[AIMP:sess-1] negotiation v3", out.Subject())

	out = Outbound{Correlation: "rm-1", Kind: KindRoom, Version: 1}
	assert.Equal(t, "[AIMP:Room:rm-1]", out.Tag())

	// Outbound subjects must round-trip through ParseTag.
	id, kind, ok := ParseTag(out.Subject())
	require.True(t, ok)
	assert.Equal(t, "rm-1", id)
	assert.Equal(t, KindRoom, kind)
}

func TestIsAutoReply(t *testing.T) {
	tests := []struct {
		name    string
		sender  string
		subject string
		want    bool
	}{
		{"mailer daemon", "MAILER-DAEMON@mx.example.com", "returned mail", true},
		{"noreply local", "noreply@calendar.example.com", "[AIMP:sess-1] negotiation v1", true},
		{"out of office", "bob@example.com", "Out of Office: [AIMP:sess-1] negotiation v1", true},
		{"automatic reply", "bob@example.com", "Automatic reply: lunch", true},
		{"undeliverable", "postmaster@example.com", "Undeliverable: [AIMP:sess-1]", true},
		{"real reply", "bob@example.com", "Re: [AIMP:sess-1] negotiation v1", false},
		{"ooo mentioned mid-subject", "bob@example.com", "back from out of office", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAutoReply(tt.sender, tt.subject))
		})
	}
}

func TestMessageRoundTripWithPayload(t *testing.T) {
	payload := []byte(`{"type":"vote","items":{"day":"tuesday"}}`)
	raw := buildMessage(
		"agent@example.com",
		[]string{"bob@example.com"},
		"[AIMP:sess-7] negotiation v2",
		"Bob prefers Tuesday.",
		payload,
		"<aimp-sess-7-v2-1@example.com>",
	)

	in, err := parseMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", in.Sender)
	assert.Equal(t, "aimp-sess-7-v2-1@example.com", in.MessageID)
	assert.Equal(t, "[AIMP:sess-7] negotiation v2", in.Subject)
	assert.Equal(t, "sess-7", in.Correlation)
	assert.Equal(t, KindSession, in.Kind)
	assert.Equal(t, "Bob prefers Tuesday.", in.Body)
	assert.JSONEq(t, string(payload), string(in.Payload))
}

func TestMessageRoundTripPlainText(t *testing.T) {
	raw := buildMessage(
		"agent@example.com",
		[]string{"owner@example.com"},
		"Confirmed: team lunch",
		"Everyone agreed on Tuesday at noon.",
		nil,
		"<aimp-notice-1@example.com>",
	)

	in, err := parseMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Everyone agreed on Tuesday at noon.", in.Body)
	assert.Nil(t, in.Payload)
	assert.Empty(t, in.Correlation)
}

func TestParseMessageFromDisplayName(t *testing.T) {
	raw := []byte("From: Bob Example <Bob@Example.com>\r\n" +
		"To: agent@example.com\r\n" +
		"Subject: Re: [AIMP:sess-7] negotiation v1\r\n" +
		"Message-ID: <abc@mail.example.com>\r\n" +
		"\r\n" +
		"Tuesday works.\r\n")

	in, err := parseMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", in.Sender)
	assert.Equal(t, "Bob Example", in.SenderName)
	assert.Equal(t, "Tuesday works.\r\n", in.Body)
}

func TestParseMessageQuotedPrintableBody(t *testing.T) {
	raw := []byte("From: bob@example.com\r\n" +
		"Subject: Re: [AIMP:sess-7] negotiation v1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"caf=C3=A9 works for me\r\n")

	in, err := parseMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Contains(t, in.Body, "café works for me")
}

func TestParseMessageRejectsGarbage(t *testing.T) {
	_, err := parseMessage(bytes.NewReader([]byte("not a mail message")))
	assert.Error(t, err)
}

func TestMemTransportRedeliversUntilAck(t *testing.T) {
	tr := NewMemTransport("agent@example.com")
	tr.Deliver(Inbound{Sender: "bob@example.com", Subject: "[AIMP:sess-42] negotiation v2"})

	ctx := context.Background()
	first, err := tr.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Not yet acknowledged: the message is still there.
	second, err := tr.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].UID, second[0].UID)

	require.NoError(t, tr.Ack(ctx, second))
	third, err := tr.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestMemTransportAckIsSelective(t *testing.T) {
	tr := NewMemTransport("agent@example.com")
	tr.Deliver(Inbound{Sender: "bob@example.com", Subject: "[AIMP:sess-42] negotiation v2"})
	tr.Deliver(Inbound{Sender: "carol@example.com", Subject: "[AIMP:sess-42] negotiation v2"})

	ctx := context.Background()
	msgs, err := tr.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	require.NoError(t, tr.Ack(ctx, msgs[:1]))
	left, err := tr.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "carol@example.com", left[0].Sender)
}

func TestFetchDiscardsAutoReplies(t *testing.T) {
	tr := NewMemTransport("agent@example.com")
	tr.Deliver(Inbound{Sender: "carol@example.com", Subject: "Out of Office: [AIMP:sess-42] negotiation v1"})
	tr.Deliver(Inbound{Sender: "mailer-daemon@example.com", Subject: "[AIMP:sess-42] negotiation v1"})
	tr.Deliver(Inbound{Sender: "bob@example.com", Subject: "[AIMP:sess-42] negotiation v2"})

	msgs, err := tr.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob@example.com", msgs[0].Sender)
}
