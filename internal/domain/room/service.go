package room

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpggio/accord/internal/domain/protocol"
)

// Service handles room lifecycle logic on top of the repository.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new room service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// InitiateRequest describes a new room.
type InitiateRequest struct {
	ID           string
	Topic        string
	Deadline     time.Time
	Participants []string
	Initiator    string
	Policy       Policy
	// Draft is the initiator's opening artifact, stored under "draft".
	Draft string
}

// Initiate creates and persists an open room, seeding the initiator's draft
// artifact when one is given.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*Room, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrValidation)
	}
	if req.Deadline.IsZero() {
		return nil, fmt.Errorf("%w: deadline is required", ErrValidation)
	}
	id := req.ID
	if id == "" {
		id = "room-" + uuid.NewString()[:8]
	}

	rm, err := New(id, req.Topic, req.Deadline, req.Participants, req.Initiator, req.Policy)
	if err != nil {
		return nil, err
	}
	if req.Draft != "" {
		if err := rm.UpsertArtifact("draft", req.Draft, req.Initiator, "text/plain"); err != nil {
			return nil, err
		}
	}
	rm.AddTranscript(req.Initiator, protocol.RoomPropose, "room opened: "+req.Topic)

	if err := s.repo.Save(ctx, rm); err != nil {
		return nil, fmt.Errorf("save room: %w", err)
	}
	s.logger.Info("room initiated",
		"room_id", rm.ID,
		"topic", rm.Topic,
		"deadline", rm.Deadline,
		"participants", len(rm.Participants))
	return rm, nil
}

// Get loads one room.
func (s *Service) Get(ctx context.Context, id string) (*Room, error) {
	return s.repo.Get(ctx, id)
}

// List returns every stored room.
func (s *Service) List(ctx context.Context) ([]*Room, error) {
	return s.repo.List(ctx)
}

// ListOpen returns rooms still in the open phase.
func (s *Service) ListOpen(ctx context.Context) ([]*Room, error) {
	return s.repo.ListOpen(ctx)
}

// Save writes a mutated room back to the store.
func (s *Service) Save(ctx context.Context, rm *Room) error {
	if err := s.repo.Save(ctx, rm); err != nil {
		return fmt.Errorf("save room %s: %w", rm.ID, err)
	}
	return nil
}
