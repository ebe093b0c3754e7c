package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/accord/internal/config"
	"github.com/rpggio/accord/internal/directory"
	"github.com/rpggio/accord/internal/domain/inbox"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
	"github.com/rpggio/accord/internal/engine"
	"github.com/rpggio/accord/internal/mail"
	"github.com/rpggio/accord/internal/oracle"
	"github.com/rpggio/accord/internal/sqlite"
)

// app holds the wired services every command needs.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sqlite.DB
	sessions *session.Service
	rooms    *room.Service
	contacts *directory.Service
	engine   *engine.Engine
}

// buildApp loads config and wires the full service graph. logWriter is
// os.Stderr in stdio server mode to keep stdout clean for JSON-RPC.
func buildApp(logWriter io.Writer) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	sessionRepo := sqlite.NewSessionRepository(db)
	roomRepo := sqlite.NewRoomRepository(db)
	inboxRepo := sqlite.NewInboxRepository(db)
	contactRepo := sqlite.NewContactRepository(db)

	sessionSvc := session.NewService(sessionRepo, logger)
	roomSvc := room.NewService(roomRepo, logger)
	inboxSvc := inbox.NewService(inboxRepo, logger)
	contactSvc := directory.NewService(contactRepo, logger)

	if cfg.Owner.Address != "" {
		if _, err := contactSvc.Register(context.Background(), cfg.Owner.Address, cfg.Owner.Name, directory.RoleOwner); err != nil {
			logger.Warn("failed to register owner contact", "error", err)
		}
	}

	transport := mail.NewEmailTransport(mail.EmailConfig{
		Address:      cfg.Agent.Address,
		IMAPHost:     cfg.Agent.IMAPHost,
		IMAPPort:     cfg.Agent.IMAPPort,
		SMTPHost:     cfg.Agent.SMTPHost,
		SMTPPort:     cfg.Agent.SMTPPort,
		Username:     cfg.Agent.Username,
		Password:     cfg.Agent.Password,
		SMTPStartTLS: cfg.Agent.SMTPStartTLS,
	}, logger)

	opts := []oracle.LLMOption{
		oracle.WithPreferences(cfg.Owner.Preferences),
		oracle.WithLogger(logger),
	}
	if cfg.Oracle.Endpoint != "" {
		opts = append(opts, oracle.WithEndpoint(cfg.Oracle.Endpoint))
	}
	orc := oracle.NewLLMOracle(cfg.Oracle.APIKey, cfg.Oracle.Model, opts...)

	eng := engine.New(engine.Config{
		Sessions:     sessionSvc,
		Rooms:        roomSvc,
		Inbox:        inboxSvc,
		Contacts:     contactSvc,
		Transport:    transport,
		Oracle:       orc,
		OwnerAddress: cfg.Owner.Address,
		Logger:       logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		sessions: sessionSvc,
		rooms:    roomSvc,
		contacts: contactSvc,
		engine:   eng,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
