package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository provides persistence for pending messages.
type Repository interface {
	Save(ctx context.Context, msg *PendingMessage) error
	// LoadPendingFor returns not-yet-processed messages for one
	// negotiation, ordered by arrival.
	LoadPendingFor(ctx context.Context, correlation string) ([]*PendingMessage, error)
	MarkProcessed(ctx context.Context, id string) error
	// UnprocessedCorrelations returns the distinct correlations that still
	// have unprocessed rows.
	UnprocessedCorrelations(ctx context.Context) ([]string, error)
}

// Service is the store-first durable inbox. SavePending must succeed before
// any interpretation of a message is attempted; a failure here means the
// message was never received as far as the rest of the system is concerned.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new inbox service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// SavePending durably records one inbound message and returns its id. The
// wire message id keys the row when available, so a message redelivered
// after a failed acknowledgement lands on its existing row instead of
// becoming a duplicate.
func (s *Service) SavePending(ctx context.Context, messageID, sender, subject, body string, payload []byte, correlation string) (string, error) {
	id := messageID
	if id == "" {
		id = uuid.NewString()
	}
	msg := &PendingMessage{
		ID:          id,
		Sender:      sender,
		Subject:     subject,
		Body:        body,
		Payload:     payload,
		Correlation: correlation,
		ArrivedAt:   time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, msg); err != nil {
		return "", fmt.Errorf("save pending message: %w", err)
	}
	s.logger.Debug("pending message stored",
		"message_id", msg.ID,
		"sender", sender,
		"correlation", correlation)
	return msg.ID, nil
}

// LoadPendingFor returns the unprocessed messages for one negotiation in
// arrival order.
func (s *Service) LoadPendingFor(ctx context.Context, correlation string) ([]*PendingMessage, error) {
	return s.repo.LoadPendingFor(ctx, correlation)
}

// MarkProcessed flags one message as consumed. Idempotent: calling it twice,
// or on an already-processed id, is safe.
func (s *Service) MarkProcessed(ctx context.Context, id string) error {
	if err := s.repo.MarkProcessed(ctx, id); err != nil {
		return fmt.Errorf("mark processed %s: %w", id, err)
	}
	return nil
}

// UnprocessedCorrelations returns every negotiation that still has stored
// but unconsumed messages. A crash between storing and processing leaves
// such rows behind; each poll cycle picks them back up from here.
func (s *Service) UnprocessedCorrelations(ctx context.Context) ([]string, error) {
	return s.repo.UnprocessedCorrelations(ctx)
}
