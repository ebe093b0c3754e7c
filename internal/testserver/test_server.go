package testserver

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/accord/internal/directory"
	"github.com/rpggio/accord/internal/domain/inbox"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
	"github.com/rpggio/accord/internal/engine"
	"github.com/rpggio/accord/internal/mail"
	"github.com/rpggio/accord/internal/mcp"
	"github.com/rpggio/accord/internal/oracle"
	"github.com/rpggio/accord/internal/sqlite"
)

const (
	AgentAddress = "agent@example.com"
	OwnerAddress = "owner@example.com"
)

// TestServer wires a full agent against an in-memory mailbox and a scripted
// oracle, exposed over an httptest MCP endpoint.
type TestServer struct {
	Server    *httptest.Server
	DB        *sqlite.DB
	Engine    *engine.Engine
	Transport *mail.MemTransport
	Oracle    *oracle.Scripted
	Sessions  *session.Service
	Rooms     *room.Service
	Inbox     *inbox.Service
	Contacts  *directory.Service

	// Now is the engine's clock; advance it to trigger deadlines.
	Now time.Time
}

func New(t *testing.T) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	sessionSvc := session.NewService(sqlite.NewSessionRepository(db), nil)
	roomSvc := room.NewService(sqlite.NewRoomRepository(db), nil)
	inboxSvc := inbox.NewService(sqlite.NewInboxRepository(db), nil)
	contactSvc := directory.NewService(sqlite.NewContactRepository(db), nil)

	ts := &TestServer{
		DB:        db,
		Transport: mail.NewMemTransport(AgentAddress),
		Oracle:    oracle.NewScripted(),
		Sessions:  sessionSvc,
		Rooms:     roomSvc,
		Inbox:     inboxSvc,
		Contacts:  contactSvc,
		Now:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	ts.Engine = engine.New(engine.Config{
		Sessions:     sessionSvc,
		Rooms:        roomSvc,
		Inbox:        inboxSvc,
		Contacts:     contactSvc,
		Transport:    ts.Transport,
		Oracle:       ts.Oracle,
		OwnerAddress: OwnerAddress,
		Now:          func() time.Time { return ts.Now },
	})

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Sessions:   sessionSvc,
			Rooms:      roomSvc,
			Negotiator: ts.Engine,
		},
		TransportMode: "http",
	})
	ts.Server = httptest.NewServer(mcp.NewHTTPHandler(mcpServer, nil))

	t.Cleanup(func() {
		ts.Server.Close()
		_ = db.Close()
	})

	return ts
}
