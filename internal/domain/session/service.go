package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rpggio/accord/internal/domain/protocol"
)

// Service handles negotiation lifecycle logic on top of the repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new session service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// InitiateRequest describes a new negotiation.
type InitiateRequest struct {
	ID           string
	Topic        string
	Participants []string
	Initiator    string
	Items        map[string][]string
}

// Initiate creates and persists a new negotiation. The initiator is
// always ensured as a participant with a vote slot on every item; when the
// request omits an ID one is generated.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*Session, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one proposal item is required", ErrValidation)
	}
	id := req.ID
	if id == "" {
		id = "meeting-" + uuid.NewString()[:8]
	}

	sess, err := New(id, req.Topic, req.Participants, req.Initiator, req.Items)
	if err != nil {
		return nil, err
	}
	if req.Initiator != "" {
		sess.EnsureParticipant(req.Initiator)
	}
	sess.Touch(req.Initiator, protocol.SessionPropose, "negotiation opened: "+req.Topic)

	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("session initiated",
		"session_id", sess.ID,
		"topic", sess.Topic,
		"participants", len(sess.Participants))
	return sess, nil
}

// Get loads one negotiation.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.repo.Get(ctx, id)
}

// List returns every stored negotiation.
func (s *Service) List(ctx context.Context) ([]*Session, error) {
	return s.repo.List(ctx)
}

// ListActive returns negotiations still in the negotiating status.
func (s *Service) ListActive(ctx context.Context) ([]*Session, error) {
	return s.repo.ListActive(ctx)
}

// Save writes a mutated negotiation back to the store.
func (s *Service) Save(ctx context.Context, sess *Session) error {
	if err := s.repo.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}
