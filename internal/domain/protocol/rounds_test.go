package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/accord/internal/domain/protocol"
)

var (
	participants = []string{"a@x.com", "b@x.com", "c@x.com"}
	initiator    = "a@x.com"
)

func TestRoundState_RecordReplyDeduplicates(t *testing.T) {
	rs := protocol.RoundState{CurrentRound: 1}

	require.True(t, rs.RecordReply("b@x.com"))
	require.False(t, rs.RecordReply("b@x.com"))
	require.Len(t, rs.Respondents, 1)
}

func TestRoundState_StrayReplyTolerated(t *testing.T) {
	rs := protocol.RoundState{CurrentRound: 1}

	require.True(t, rs.RecordReply("stranger@elsewhere.com"))
	require.False(t, rs.IsComplete(participants, initiator))
}

func TestRoundState_FirstRoundExcludesInitiator(t *testing.T) {
	rs := protocol.RoundState{CurrentRound: 1}

	require.Equal(t, []string{"b@x.com", "c@x.com"}, rs.RequiredResponders(participants, initiator))

	rs.RecordReply("b@x.com")
	require.False(t, rs.IsComplete(participants, initiator))
	rs.RecordReply("c@x.com")
	require.True(t, rs.IsComplete(participants, initiator))
}

func TestRoundState_LaterRoundsRequireEveryone(t *testing.T) {
	rs := protocol.RoundState{CurrentRound: 2}

	rs.RecordReply("b@x.com")
	rs.RecordReply("c@x.com")
	require.False(t, rs.IsComplete(participants, initiator))

	rs.RecordReply("a@x.com")
	require.True(t, rs.IsComplete(participants, initiator))
}

func TestRoundState_AdvanceClearsReplies(t *testing.T) {
	rs := protocol.RoundState{CurrentRound: 1}
	rs.RecordReply("b@x.com")
	rs.RecordReply("c@x.com")

	require.NoError(t, rs.Advance(participants, initiator, false))
	require.Equal(t, 2, rs.CurrentRound)
	require.Empty(t, rs.Respondents)
}

func TestRoundState_AdvanceOpenRoundFails(t *testing.T) {
	rs := protocol.RoundState{CurrentRound: 1}
	rs.RecordReply("b@x.com")

	require.ErrorIs(t, rs.Advance(participants, initiator, false), protocol.ErrRoundOpen)
	require.Equal(t, 1, rs.CurrentRound)
}

func TestRoundState_TerminalForcesAdvance(t *testing.T) {
	rs := protocol.RoundState{CurrentRound: 3}

	require.NoError(t, rs.Advance(participants, initiator, true))
	require.Equal(t, 4, rs.CurrentRound)
}
