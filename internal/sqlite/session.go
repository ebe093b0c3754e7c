package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/accord/internal/domain/session"
	"github.com/rpggio/accord/internal/repository"
)

// SessionRepository implements repository.SessionRepository for SQLite
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save upserts a negotiation as a JSON document.
func (r *SessionRepository) Save(ctx context.Context, sess *session.Session) error {
	data, err := sess.ToJSON()
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}
	query := `
		INSERT INTO sessions (id, status, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			data = excluded.data,
			updated_at = excluded.updated_at
	`
	return retryOnContention(func() error {
		_, err := r.db.ExecContext(ctx, query,
			sess.ID,
			string(sess.Status),
			string(data),
			time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// Get retrieves a negotiation by ID
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session.FromJSON([]byte(data))
}

// List returns every stored negotiation, oldest first.
func (r *SessionRepository) List(ctx context.Context) ([]*session.Session, error) {
	return r.list(ctx, `SELECT data FROM sessions ORDER BY updated_at`)
}

// ListActive returns negotiations that have not reached a terminal status.
func (r *SessionRepository) ListActive(ctx context.Context) ([]*session.Session, error) {
	return r.list(ctx, `SELECT data FROM sessions WHERE status = 'negotiating' ORDER BY updated_at`)
}

func (r *SessionRepository) list(ctx context.Context, query string) ([]*session.Session, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess, err := session.FromJSON([]byte(data))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
