package room_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/accord/internal/domain/protocol"
	"github.com/rpggio/accord/internal/domain/room"
)

var deadline = time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)

func newTestRoom(t *testing.T) *room.Room {
	t.Helper()
	rm, err := room.New("room-1", "Offsite agenda", deadline,
		[]string{"a@x.com", "b@x.com"}, "agent@x.com", "")
	require.NoError(t, err)
	return rm
}

func TestNew_Defaults(t *testing.T) {
	rm := newTestRoom(t)

	require.Equal(t, room.StatusOpen, rm.Status)
	require.Equal(t, room.PolicyMajority, rm.Policy)
	require.Equal(t, 1, rm.CurrentRound)
	require.Empty(t, rm.Artifacts)
}

func TestUpsertArtifact_OnlyWhileOpen(t *testing.T) {
	rm := newTestRoom(t)

	require.NoError(t, rm.UpsertArtifact("draft", "v1 agenda", "a@x.com", "text/plain"))
	require.NoError(t, rm.UpsertArtifact("draft", "v2 agenda", "b@x.com", "text/plain"))
	require.Equal(t, "v2 agenda", rm.Artifacts["draft"].Content)
	require.Equal(t, "b@x.com", rm.Artifacts["draft"].Author)

	require.NoError(t, rm.Lock(room.TriggerDeadline))
	require.ErrorIs(t, rm.UpsertArtifact("draft", "v3", "a@x.com", "text/plain"), room.ErrRoomClosed)
}

func TestRecordAcceptance_DoesNotResetOnAmend(t *testing.T) {
	rm := newTestRoom(t)

	rm.RecordAcceptance("a@x.com")
	require.NoError(t, rm.UpsertArtifact("draft", "amended", "b@x.com", "text/plain"))
	require.Equal(t, []string{"a@x.com"}, rm.AcceptedBy)
}

func TestAllAccepted(t *testing.T) {
	rm := newTestRoom(t)
	require.False(t, rm.AllAccepted())

	rm.RecordAcceptance("a@x.com")
	rm.RecordAcceptance("a@x.com")
	require.False(t, rm.AllAccepted())
	require.Len(t, rm.AcceptedBy, 1)

	rm.RecordAcceptance("b@x.com")
	require.True(t, rm.AllAccepted())
}

func TestCloseTrigger_DeadlineBeatsAcceptance(t *testing.T) {
	rm := newTestRoom(t)
	rm.RecordAcceptance("a@x.com")
	rm.RecordAcceptance("b@x.com")

	trigger, ok := rm.CloseTrigger(deadline.Add(-time.Minute))
	require.True(t, ok)
	require.Equal(t, room.TriggerAllAccepted, trigger)

	// At or past the deadline, the deadline wins even with all accepted.
	trigger, ok = rm.CloseTrigger(deadline)
	require.True(t, ok)
	require.Equal(t, room.TriggerDeadline, trigger)
}

func TestCloseTrigger_NothingBeforeDeadline(t *testing.T) {
	rm := newTestRoom(t)
	rm.RecordAcceptance("a@x.com")

	_, ok := rm.CloseTrigger(deadline.Add(-time.Hour))
	require.False(t, ok)
}

func TestLockAndFinalize(t *testing.T) {
	rm := newTestRoom(t)

	require.Error(t, rm.Finalize("minutes", "agent@x.com"))

	require.NoError(t, rm.Lock(room.TriggerDeadline))
	require.Equal(t, room.StatusLocked, rm.Status)
	require.ErrorIs(t, rm.Lock(room.TriggerDeadline), room.ErrRoomClosed)

	require.NoError(t, rm.Finalize("agreed agenda", "agent@x.com"))
	require.Equal(t, room.StatusFinalized, rm.Status)
	require.Equal(t, "agreed agenda", rm.Artifacts[room.MinutesArtifact].Content)
}

func TestAddTranscript_SequentialVersions(t *testing.T) {
	rm := newTestRoom(t)

	rm.AddTranscript("a@x.com", protocol.RoomPropose, "opened")
	rm.AddTranscript("b@x.com", protocol.RoomAmend, "amended")

	require.Equal(t, 1, rm.Transcript[0].Version)
	require.Equal(t, 2, rm.Transcript[1].Version)
}

func TestCodec_RoundTrip(t *testing.T) {
	rm := newTestRoom(t)
	require.NoError(t, rm.UpsertArtifact("draft", "agenda", "a@x.com", "text/plain"))
	rm.RecordAcceptance("a@x.com")
	rm.RecordRoundReply("a@x.com")

	data, err := rm.ToJSON()
	require.NoError(t, err)

	decoded, err := room.FromJSON(data)
	require.NoError(t, err)
	require.Equal(t, rm.ID, decoded.ID)
	require.True(t, rm.Deadline.Equal(decoded.Deadline))
	require.Equal(t, "agenda", decoded.Artifacts["draft"].Content)
	require.Equal(t, []string{"a@x.com"}, decoded.AcceptedBy)
	require.Equal(t, []string{"a@x.com"}, decoded.Respondents)
}
