package session

import "context"

// Repository provides persistence for negotiations.
type Repository interface {
	Save(ctx context.Context, sess *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context) ([]*Session, error)
	ListActive(ctx context.Context) ([]*Session, error)
}
