package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/accord/internal/domain/room"
	"github.com/rpggio/accord/internal/repository"
)

// RoomRepository implements repository.RoomRepository for SQLite
type RoomRepository struct {
	db *DB
}

// NewRoomRepository creates a new RoomRepository
func NewRoomRepository(db *DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Save upserts a room as a JSON document. The deadline is denormalized into
// its own column so the per-cycle deadline sweep never parses documents.
func (r *RoomRepository) Save(ctx context.Context, rm *room.Room) error {
	data, err := rm.ToJSON()
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}
	query := `
		INSERT INTO rooms (id, status, deadline, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			deadline = excluded.deadline,
			data = excluded.data,
			updated_at = excluded.updated_at
	`
	return retryOnContention(func() error {
		_, err := r.db.ExecContext(ctx, query,
			rm.ID,
			string(rm.Status),
			rm.Deadline.UTC().Format(time.RFC3339Nano),
			string(data),
			time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to save room: %w", err)
		}
		return nil
	})
}

// Get retrieves a room by ID
func (r *RoomRepository) Get(ctx context.Context, id string) (*room.Room, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM rooms WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room.FromJSON([]byte(data))
}

// List returns every stored room, oldest first.
func (r *RoomRepository) List(ctx context.Context) ([]*room.Room, error) {
	return r.list(ctx, `SELECT data FROM rooms ORDER BY updated_at`)
}

// ListOpen returns rooms still in the open phase.
func (r *RoomRepository) ListOpen(ctx context.Context) ([]*room.Room, error) {
	return r.list(ctx, `SELECT data FROM rooms WHERE status = 'open' ORDER BY updated_at`)
}

func (r *RoomRepository) list(ctx context.Context, query string) ([]*room.Room, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*room.Room
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rm, err := room.FromJSON([]byte(data))
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, rm)
	}
	return rooms, rows.Err()
}
