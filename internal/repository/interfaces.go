package repository

import (
	"context"

	"github.com/rpggio/accord/internal/directory"
	"github.com/rpggio/accord/internal/domain/inbox"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
)

// SessionRepository manages negotiation persistence
type SessionRepository interface {
	Save(ctx context.Context, sess *session.Session) error
	Get(ctx context.Context, id string) (*session.Session, error)
	List(ctx context.Context) ([]*session.Session, error)
	ListActive(ctx context.Context) ([]*session.Session, error)
}

// RoomRepository manages room persistence
type RoomRepository interface {
	Save(ctx context.Context, rm *room.Room) error
	Get(ctx context.Context, id string) (*room.Room, error)
	List(ctx context.Context) ([]*room.Room, error)
	ListOpen(ctx context.Context) ([]*room.Room, error)
}

// InboxRepository manages durable pending-message persistence
type InboxRepository interface {
	Save(ctx context.Context, msg *inbox.PendingMessage) error
	LoadPendingFor(ctx context.Context, correlation string) ([]*inbox.PendingMessage, error)
	MarkProcessed(ctx context.Context, id string) error
	UnprocessedCorrelations(ctx context.Context) ([]string, error)
}

// ContactRepository manages the contact directory
type ContactRepository interface {
	Upsert(ctx context.Context, c *directory.Contact) error
	GetByAddress(ctx context.Context, addr string) (*directory.Contact, error)
	FindByName(ctx context.Context, name string) (*directory.Contact, error)
	List(ctx context.Context) ([]*directory.Contact, error)
}
