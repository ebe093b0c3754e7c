package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rpggio/accord/internal/directory"
	"github.com/rpggio/accord/internal/domain/inbox"
	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/domain/session"
)

// SessionRepository is a mock for repository.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Save(ctx context.Context, sess *session.Session) error {
	args := m.Called(ctx, sess)
	return args.Error(0)
}

func (m *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	args := m.Called(ctx, id)
	if sess, ok := args.Get(0).(*session.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) List(ctx context.Context) ([]*session.Session, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]*session.Session); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) ListActive(ctx context.Context) ([]*session.Session, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]*session.Session); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// RoomRepository is a mock for repository.RoomRepository.
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) Save(ctx context.Context, rm *room.Room) error {
	args := m.Called(ctx, rm)
	return args.Error(0)
}

func (m *RoomRepository) Get(ctx context.Context, id string) (*room.Room, error) {
	args := m.Called(ctx, id)
	if rm, ok := args.Get(0).(*room.Room); ok {
		return rm, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) List(ctx context.Context) ([]*room.Room, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]*room.Room); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) ListOpen(ctx context.Context) ([]*room.Room, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]*room.Room); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// InboxRepository is a mock for repository.InboxRepository.
type InboxRepository struct {
	mock.Mock
}

func (m *InboxRepository) Save(ctx context.Context, msg *inbox.PendingMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *InboxRepository) LoadPendingFor(ctx context.Context, correlation string) ([]*inbox.PendingMessage, error) {
	args := m.Called(ctx, correlation)
	if list, ok := args.Get(0).([]*inbox.PendingMessage); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *InboxRepository) MarkProcessed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *InboxRepository) UnprocessedCorrelations(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]string); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ContactRepository is a mock for repository.ContactRepository.
type ContactRepository struct {
	mock.Mock
}

func (m *ContactRepository) Upsert(ctx context.Context, c *directory.Contact) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *ContactRepository) GetByAddress(ctx context.Context, addr string) (*directory.Contact, error) {
	args := m.Called(ctx, addr)
	if c, ok := args.Get(0).(*directory.Contact); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ContactRepository) FindByName(ctx context.Context, name string) (*directory.Contact, error) {
	args := m.Called(ctx, name)
	if c, ok := args.Get(0).(*directory.Contact); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ContactRepository) List(ctx context.Context) ([]*directory.Contact, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]*directory.Contact); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
