package room

import "context"

// Repository provides persistence for rooms.
type Repository interface {
	Save(ctx context.Context, rm *Room) error
	Get(ctx context.Context, id string) (*Room, error)
	List(ctx context.Context) ([]*Room, error)
	ListOpen(ctx context.Context) ([]*Room, error)
}
