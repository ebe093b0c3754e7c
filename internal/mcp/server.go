package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
	"github.com/rpggio/accord/internal/engine"
)

// SessionService defines negotiation session operations needed by MCP.
type SessionService interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	List(ctx context.Context) ([]*session.Session, error)
	ListActive(ctx context.Context) ([]*session.Session, error)
}

// RoomService defines room operations needed by MCP.
type RoomService interface {
	Get(ctx context.Context, id string) (*room.Room, error)
	List(ctx context.Context) ([]*room.Room, error)
	ListOpen(ctx context.Context) ([]*room.Room, error)
}

// Negotiator defines the engine operations needed by MCP.
type Negotiator interface {
	InitiateSession(ctx context.Context, req session.InitiateRequest) (*session.Session, error)
	InitiateRoom(ctx context.Context, req room.InitiateRequest) (*room.Room, error)
	Respond(ctx context.Context, sessionID, text string) ([]engine.Event, error)
	PollOnce(ctx context.Context) ([]engine.Event, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Sessions   SessionService
	Rooms      RoomService
	Negotiator Negotiator
}

// Config contains server configuration.
type Config struct {
	Services      Services
	AuthToken     string
	TransportMode string // "stdio" or "http"
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "accord",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio mode is local only; token auth applies to HTTP when configured.
	if cfg.TransportMode != "stdio" && cfg.AuthToken != "" {
		server.AddReceivingMiddleware(tokenAuthMiddleware(cfg.AuthToken))
	}
	server.AddReceivingMiddleware(debugTraffic(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(debugTraffic(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services)

	return server
}
