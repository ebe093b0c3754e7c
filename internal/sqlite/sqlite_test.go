package sqlite_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/accord/internal/directory"
	"github.com/rpggio/accord/internal/domain/inbox"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
	"github.com/rpggio/accord/internal/repository"
	"github.com/rpggio/accord/internal/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSessionRepository_SaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewSessionRepository(newTestDB(t))

	sess, err := session.New("meeting-1", "Team sync", []string{"a@x.com", "b@x.com"}, "a@x.com",
		map[string][]string{"day": {"Tuesday", "Thursday"}})
	require.NoError(t, err)
	require.NoError(t, sess.ApplyVote("b@x.com", "day", "Thursday"))
	require.NoError(t, repo.Save(ctx, sess))

	loaded, err := repo.Get(ctx, "meeting-1")
	require.NoError(t, err)
	require.Equal(t, sess.Version, loaded.Version)
	require.Equal(t, "Thursday", *loaded.Proposals["day"].Votes["b@x.com"])

	// Upsert replaces the document.
	require.NoError(t, loaded.Confirm("agent@x.com"))
	require.NoError(t, repo.Save(ctx, loaded))
	again, err := repo.Get(ctx, "meeting-1")
	require.NoError(t, err)
	require.Equal(t, session.StatusConfirmed, again.Status)
}

func TestSessionRepository_GetNotFound(t *testing.T) {
	repo := sqlite.NewSessionRepository(newTestDB(t))
	_, err := repo.Get(context.Background(), "nope")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_ListActiveExcludesTerminal(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewSessionRepository(newTestDB(t))

	active, err := session.New("m1", "one", []string{"a@x.com"}, "a@x.com", map[string][]string{"day": {"Tue"}})
	require.NoError(t, err)
	done, err := session.New("m2", "two", []string{"a@x.com"}, "a@x.com", map[string][]string{"day": {"Tue"}})
	require.NoError(t, err)
	require.NoError(t, done.Escalate("agent@x.com", "stalled"))

	require.NoError(t, repo.Save(ctx, active))
	require.NoError(t, repo.Save(ctx, done))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	negotiating, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, negotiating, 1)
	require.Equal(t, "m1", negotiating[0].ID)
}

func TestRoomRepository_ListOpen(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewRoomRepository(newTestDB(t))
	deadline := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)

	open, err := room.New("r1", "agenda", deadline, []string{"a@x.com"}, "agent@x.com", "")
	require.NoError(t, err)
	closed, err := room.New("r2", "venue", deadline, []string{"a@x.com"}, "agent@x.com", "")
	require.NoError(t, err)
	require.NoError(t, closed.Lock(room.TriggerDeadline))

	require.NoError(t, repo.Save(ctx, open))
	require.NoError(t, repo.Save(ctx, closed))

	rooms, err := repo.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, "r1", rooms[0].ID)

	loaded, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	require.True(t, deadline.Equal(loaded.Deadline))
}

func TestInboxRepository_StoreFirstOrdering(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewInboxRepository(newTestDB(t))
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for i, sender := range []string{"b@x.com", "c@x.com", "d@x.com"} {
		require.NoError(t, repo.Save(ctx, &inbox.PendingMessage{
			ID:          fmt.Sprintf("msg-%d", i),
			Sender:      sender,
			Subject:     "[AIMP:meeting-1] reply",
			Body:        "Thursday works",
			Correlation: "meeting-1",
			ArrivedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	pending, err := repo.LoadPendingFor(ctx, "meeting-1")
	require.NoError(t, err)
	require.Len(t, pending, 3)
	require.Equal(t, "b@x.com", pending[0].Sender)
	require.Equal(t, "d@x.com", pending[2].Sender)
}

func TestInboxRepository_SaveIsReplaySafe(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewInboxRepository(newTestDB(t))

	msg := &inbox.PendingMessage{
		ID:          "msg-1",
		Sender:      "b@x.com",
		Subject:     "s",
		Body:        "original",
		Correlation: "meeting-1",
		ArrivedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, msg))

	replay := *msg
	replay.Body = "mutated replay"
	require.NoError(t, repo.Save(ctx, &replay))

	pending, err := repo.LoadPendingFor(ctx, "meeting-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "original", pending[0].Body)
}

func TestInboxRepository_MarkProcessedIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewInboxRepository(newTestDB(t))

	require.NoError(t, repo.Save(ctx, &inbox.PendingMessage{
		ID:          "msg-1",
		Sender:      "b@x.com",
		Subject:     "s",
		Body:        "b",
		Correlation: "meeting-1",
		ArrivedAt:   time.Now().UTC(),
	}))

	require.NoError(t, repo.MarkProcessed(ctx, "msg-1"))
	require.NoError(t, repo.MarkProcessed(ctx, "msg-1"))
	require.NoError(t, repo.MarkProcessed(ctx, "never-existed"))

	pending, err := repo.LoadPendingFor(ctx, "meeting-1")
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestInboxRepository_CrashRecoveryReplaysUnprocessed(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewInboxRepository(newTestDB(t))
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, &inbox.PendingMessage{
			ID:          fmt.Sprintf("msg-%d", i),
			Sender:      "b@x.com",
			Subject:     "s",
			Body:        "b",
			Correlation: "meeting-1",
			ArrivedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}
	// Simulate a crash mid-cycle: only the first message got marked.
	require.NoError(t, repo.MarkProcessed(ctx, "msg-0"))

	pending, err := repo.LoadPendingFor(ctx, "meeting-1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "msg-1", pending[0].ID)
}

func TestInboxRepository_UnprocessedCorrelations(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewInboxRepository(newTestDB(t))
	base := time.Now().UTC()

	rows := []struct {
		id, correlation string
		processed       bool
	}{
		{"msg-0", "meeting-1", true},
		{"msg-1", "meeting-1", false},
		{"msg-2", "meeting-2", false},
		{"msg-3", "meeting-2", false},
		{"msg-4", "", false}, // untagged mail never replays
	}
	for i, r := range rows {
		require.NoError(t, repo.Save(ctx, &inbox.PendingMessage{
			ID:          r.id,
			Sender:      "b@x.com",
			Subject:     "s",
			Body:        "b",
			Correlation: r.correlation,
			Processed:   r.processed,
			ArrivedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}

	correlations, err := repo.UnprocessedCorrelations(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"meeting-1", "meeting-2"}, correlations)

	require.NoError(t, repo.MarkProcessed(ctx, "msg-1"))
	correlations, err = repo.UnprocessedCorrelations(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"meeting-2"}, correlations)
}

func TestContactRepository_ResolveByNameAndAddress(t *testing.T) {
	ctx := context.Background()
	repo := sqlite.NewContactRepository(newTestDB(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, &directory.Contact{
		Address:   "alice@x.com",
		Name:      "Alice",
		Role:      directory.RoleMember,
		CreatedAt: now,
	}))

	byAddr, err := repo.GetByAddress(ctx, "alice@x.com")
	require.NoError(t, err)
	require.Equal(t, "Alice", byAddr.Name)

	byName, err := repo.FindByName(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "alice@x.com", byName.Address)

	_, err = repo.GetByAddress(ctx, "bob@x.com")
	require.ErrorIs(t, err, repository.ErrNotFound)

	// Upsert replaces in place.
	require.NoError(t, repo.Upsert(ctx, &directory.Contact{
		Address:   "alice@x.com",
		Name:      "Alice Smith",
		Role:      directory.RoleOwner,
		CreatedAt: now,
	}))
	updated, err := repo.GetByAddress(ctx, "alice@x.com")
	require.NoError(t, err)
	require.Equal(t, "Alice Smith", updated.Name)
	require.Equal(t, directory.RoleOwner, updated.Role)
}
