package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rpggio/accord/internal/domain/inbox"
	"github.com/rpggio/accord/internal/repository"
)

// InboxRepository implements repository.InboxRepository for SQLite
type InboxRepository struct {
	db *DB
}

// NewInboxRepository creates a new InboxRepository
func NewInboxRepository(db *DB) *InboxRepository {
	return &InboxRepository{db: db}
}

// Save durably records one inbound message. Saving the same id again leaves
// the original row untouched so replayed fetches cannot resurrect or double
// a message.
func (r *InboxRepository) Save(ctx context.Context, msg *inbox.PendingMessage) error {
	if msg.ID == "" {
		return fmt.Errorf("%w: message id is required", repository.ErrInvalidInput)
	}
	query := `
		INSERT INTO pending_messages (id, sender, subject, body, payload, correlation, processed, arrived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	return retryOnContention(func() error {
		_, err := r.db.ExecContext(ctx, query,
			msg.ID,
			msg.Sender,
			msg.Subject,
			msg.Body,
			msg.Payload,
			msg.Correlation,
			boolToInt(msg.Processed),
			msg.ArrivedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to save pending message: %w", err)
		}
		return nil
	})
}

// LoadPendingFor returns the unprocessed messages for one negotiation,
// ordered by arrival.
func (r *InboxRepository) LoadPendingFor(ctx context.Context, correlation string) ([]*inbox.PendingMessage, error) {
	query := `
		SELECT id, sender, subject, body, payload, correlation, processed, arrived_at
		FROM pending_messages
		WHERE correlation = ? AND processed = 0
		ORDER BY arrived_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, correlation)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending messages: %w", err)
	}
	defer rows.Close()

	var msgs []*inbox.PendingMessage
	for rows.Next() {
		var msg inbox.PendingMessage
		var processed int
		var arrivedAt string
		if err := rows.Scan(
			&msg.ID,
			&msg.Sender,
			&msg.Subject,
			&msg.Body,
			&msg.Payload,
			&msg.Correlation,
			&processed,
			&arrivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending message: %w", err)
		}
		msg.Processed = processed != 0
		if msg.ArrivedAt, err = time.Parse(time.RFC3339Nano, arrivedAt); err != nil {
			return nil, fmt.Errorf("failed to parse arrival time: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// MarkProcessed flags a message as consumed. Idempotent: marking an
// already-processed or unknown id changes nothing and is not an error.
func (r *InboxRepository) MarkProcessed(ctx context.Context, id string) error {
	return retryOnContention(func() error {
		_, err := r.db.ExecContext(ctx,
			`UPDATE pending_messages SET processed = 1 WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to mark message processed: %w", err)
		}
		return nil
	})
}

// UnprocessedCorrelations returns the distinct negotiations with stored but
// unconsumed messages. Untagged mail (empty correlation) is handled at
// arrival and excluded here.
func (r *InboxRepository) UnprocessedCorrelations(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT correlation
		FROM pending_messages
		WHERE processed = 0 AND correlation <> ''
		ORDER BY correlation
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed correlations: %w", err)
	}
	defer rows.Close()

	var correlations []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan correlation: %w", err)
		}
		correlations = append(correlations, c)
	}
	return correlations, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
