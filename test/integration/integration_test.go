package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/accord/internal/domain/protocol"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
	"github.com/rpggio/accord/internal/engine"
	"github.com/rpggio/accord/internal/mail"
	"github.com/rpggio/accord/internal/oracle"
	"github.com/rpggio/accord/internal/testserver"
)

const (
	bobAddr   = "bob@example.com"
	carolAddr = "carol@example.com"
)

// mailVote queues the protocol message a counterparty agent would send:
// its own copy of the session state with one vote applied.
func mailVote(t *testing.T, ts *testserver.TestServer, sessionID, sender, item, choice string) {
	t.Helper()
	theirs, err := ts.Sessions.Get(context.Background(), sessionID)
	require.NoError(t, err)
	require.NoError(t, theirs.ApplyVote(sender, item, choice))
	payload, err := theirs.ToJSON()
	require.NoError(t, err)
	ts.Transport.Deliver(mail.Inbound{
		Sender:      sender,
		Subject:     "Re: " + mail.SessionTag(sessionID) + " negotiation",
		Correlation: sessionID,
		Kind:        mail.KindSession,
		Payload:     payload,
	})
}

func mailRoomReply(ts *testserver.TestServer, roomID, sender, body string) {
	ts.Transport.Deliver(mail.Inbound{
		Sender:      sender,
		Subject:     "Re: " + mail.RoomTag(roomID) + " negotiation",
		Body:        body,
		Correlation: roomID,
		Kind:        mail.KindRoom,
	})
}

func eventTypes(events []engine.Event) []engine.EventType {
	var types []engine.EventType
	for _, evt := range events {
		types = append(types, evt.Type)
	}
	return types
}

// A full two-round negotiation: round 1 surfaces a counter-proposal, round 2
// converges on it.
func TestIntegration_TwoRoundNegotiation(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t)

	sess, err := ts.Engine.InitiateSession(ctx, session.InitiateRequest{
		Topic:        "project kickoff",
		Participants: []string{bobAddr, carolAddr},
		Items:        map[string][]string{"day": {"tuesday", "wednesday"}},
	})
	require.NoError(t, err)
	require.Len(t, ts.Transport.Sent, 1, "opening proposal")

	// Round 1: bob takes tuesday, carol counters with friday.
	mailVote(t, ts, sess.ID, bobAddr, "day", "tuesday")
	mailVote(t, ts, sess.ID, carolAddr, "day", "friday")
	events, err := ts.Engine.PollOnce(ctx)
	require.NoError(t, err)
	require.Contains(t, eventTypes(events), engine.EventReplySent)

	// The aggregated round-2 update carries machine-readable state that a
	// counterparty agent can parse back.
	require.Len(t, ts.Transport.Sent, 2)
	update := ts.Transport.Sent[1]
	assert.ElementsMatch(t, []string{bobAddr, carolAddr}, update.Recipients)
	echoed, err := session.FromJSON(update.Payload)
	require.NoError(t, err)
	assert.Equal(t, 2, echoed.CurrentRound)
	assert.Contains(t, echoed.Proposals["day"].Options, "friday")

	// Round 2: everyone converges on friday; the agent's policy follows.
	mailVote(t, ts, sess.ID, bobAddr, "day", "friday")
	mailVote(t, ts, sess.ID, carolAddr, "day", "friday")
	ts.Oracle.QueueDecision(oracle.Decision{
		Action: protocol.SessionAccept,
		Votes:  map[string]string{"day": "friday"},
	})
	events, err = ts.Engine.PollOnce(ctx)
	require.NoError(t, err)
	require.Contains(t, eventTypes(events), engine.EventConsensus)

	saved, err := ts.Sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusConfirmed, saved.Status)
	assert.Equal(t, map[string]string{"day": "friday"}, saved.CheckConsensus())
	assert.Greater(t, saved.Version, sess.Version, "versions only move forward")

	// Counterparties got the confirmation, the owner got the summary.
	final := ts.Transport.Sent[len(ts.Transport.Sent)-1]
	assert.Contains(t, final.Body, "Agreement reached on project kickoff")
	require.NotEmpty(t, ts.Transport.Notices)
	assert.Equal(t, "Confirmed: project kickoff", ts.Transport.Notices[len(ts.Transport.Notices)-1].Subject)
}

// A negotiation that never converges escalates at the round ceiling, and
// late mail for it is discarded.
func TestIntegration_EscalationAtRoundCeiling(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t)

	sess, err := ts.Engine.InitiateSession(ctx, session.InitiateRequest{
		Topic:        "budget review",
		Participants: []string{bobAddr},
		Items:        map[string][]string{"week": {"this", "next"}},
	})
	require.NoError(t, err)

	// Bob answers every round but the agent's policy never commits, so
	// the rounds grind up to the ceiling.
	var lastEvents []engine.Event
	for round := 1; round < protocol.MaxRounds; round++ {
		mailVote(t, ts, sess.ID, bobAddr, "week", "next")
		lastEvents, err = ts.Engine.PollOnce(ctx)
		require.NoError(t, err)
		require.Contains(t, eventTypes(lastEvents), engine.EventReplySent, "round %d should advance", round)
	}

	mailVote(t, ts, sess.ID, bobAddr, "week", "next")
	lastEvents, err = ts.Engine.PollOnce(ctx)
	require.NoError(t, err)
	require.Contains(t, eventTypes(lastEvents), engine.EventEscalation)

	saved, err := ts.Sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusEscalated, saved.Status)
	notice := ts.Transport.Notices[len(ts.Transport.Notices)-1]
	assert.Equal(t, "Escalated: budget review", notice.Subject)

	// Stragglers after escalation are acknowledged and dropped.
	mailVote(t, ts, sess.ID, bobAddr, "week", "this")
	events, err := ts.Engine.PollOnce(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventIgnored, events[0].Type)
	assert.Contains(t, events[0].Detail, "escalated")
}

// A room runs its whole life: proposal, amendment, acceptance, minutes, and
// the veto window.
func TestIntegration_RoomFullLifecycle(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t)

	rm, err := ts.Engine.InitiateRoom(ctx, room.InitiateRequest{
		Topic:        "release checklist",
		Deadline:     ts.Now.Add(24 * time.Hour),
		Participants: []string{bobAddr, carolAddr},
		Draft:        "1. tag the release\n2. deploy",
	})
	require.NoError(t, err)

	// Bob amends the draft; carol is still quiet, so nothing closes.
	mailRoomReply(ts, rm.ID, bobAddr, "AMEND 1. tag the release\n2. deploy\n3. announce")
	events, err := ts.Engine.PollOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	saved, err := ts.Rooms.Get(ctx, rm.ID)
	require.NoError(t, err)
	assert.Contains(t, saved.Artifacts["draft"].Content, "3. announce")
	assert.Equal(t, bobAddr, saved.Artifacts["draft"].Author)

	// Carol accepts, completing round 1; the agent accepts too but bob has
	// not, so the room advances instead of closing.
	mailRoomReply(ts, rm.ID, carolAddr, "ACCEPT")
	events, err = ts.Engine.PollOnce(ctx)
	require.NoError(t, err)
	require.Contains(t, eventTypes(events), engine.EventReplySent)

	// Round 2: both accept the amended draft.
	mailRoomReply(ts, rm.ID, bobAddr, "ACCEPT")
	mailRoomReply(ts, rm.ID, carolAddr, "ACCEPT")
	events, err = ts.Engine.PollOnce(ctx)
	require.NoError(t, err)
	types := eventTypes(events)
	require.Contains(t, types, engine.EventRoomLocked)
	require.Contains(t, types, engine.EventRoomFinalized)

	saved, err = ts.Rooms.Get(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, room.StatusFinalized, saved.Status)
	require.Contains(t, saved.Artifacts, room.MinutesArtifact)
	assert.NotEmpty(t, saved.Artifacts[room.MinutesArtifact].Content)

	// Veto window: carol confirms, bob contests.
	mailRoomReply(ts, rm.ID, carolAddr, "CONFIRM")
	mailRoomReply(ts, rm.ID, bobAddr, "REJECT step 3 was never agreed")
	events, err = ts.Engine.PollOnce(ctx)
	require.NoError(t, err)
	require.Contains(t, eventTypes(events), engine.EventRoomVeto)

	saved, err = ts.Rooms.Get(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, room.StatusFinalized, saved.Status, "a veto never reopens the room")
	last := saved.Transcript[len(saved.Transcript)-1]
	assert.Equal(t, protocol.RoomReject, last.Action)
	assert.Contains(t, last.Summary, "step 3 was never agreed")
}

// The deadline fires through the poll loop with no inbound mail at all.
func TestIntegration_DeadlineFiresWithoutMail(t *testing.T) {
	ctx := context.Background()
	ts := testserver.New(t)

	rm, err := ts.Engine.InitiateRoom(ctx, room.InitiateRequest{
		Topic:        "quarterly plan",
		Deadline:     ts.Now.Add(time.Hour),
		Participants: []string{bobAddr},
	})
	require.NoError(t, err)

	events, err := ts.Engine.PollOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, events, "deadline not reached yet")

	ts.Now = ts.Now.Add(90 * time.Minute)
	events, err = ts.Engine.PollOnce(ctx)
	require.NoError(t, err)
	types := eventTypes(events)
	require.Contains(t, types, engine.EventRoomLocked)
	require.Contains(t, types, engine.EventRoomFinalized)

	for _, evt := range events {
		if evt.Type == engine.EventRoomLocked {
			assert.Equal(t, room.TriggerDeadline, evt.Trigger)
		}
	}

	saved, err := ts.Rooms.Get(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, room.StatusFinalized, saved.Status)
}
