// Package directory is the contact book: who the agent negotiates with, who
// belongs to the hub, and which senders are unknown.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Role classifies a contact.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// Contact is one known counterparty.
type Contact struct {
	Address   string    `json:"address"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository provides contact persistence.
type Repository interface {
	Upsert(ctx context.Context, c *Contact) error
	GetByAddress(ctx context.Context, addr string) (*Contact, error)
	FindByName(ctx context.Context, name string) (*Contact, error)
	List(ctx context.Context) ([]*Contact, error)
}

// Service resolves senders and recipients against the contact book. It also
// rate-limits courtesy bounces to unknown senders so a chatty stranger never
// triggers a reply storm.
type Service struct {
	repo   Repository
	logger *slog.Logger

	mu         sync.Mutex
	lastBounce map[string]time.Time
}

// BounceInterval is the minimum gap between courtesy replies to the same
// unknown sender.
const BounceInterval = 24 * time.Hour

// NewService creates a new directory service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		logger:     logger,
		lastBounce: make(map[string]time.Time),
	}
}

// Register upserts a contact.
func (s *Service) Register(ctx context.Context, addr, name string, role Role) (*Contact, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return nil, fmt.Errorf("contact address is required")
	}
	if name == "" {
		name = displayNameFromAddress(addr)
	}
	c := &Contact{
		Address:   addr,
		Name:      name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, c); err != nil {
		return nil, fmt.Errorf("register contact %s: %w", addr, err)
	}
	s.logger.Info("contact registered", "address", addr, "name", name, "role", role)
	return c, nil
}

// Identify returns the contact for a sender address, or nil when unknown.
func (s *Service) Identify(ctx context.Context, addr string) (*Contact, error) {
	return s.repo.GetByAddress(ctx, strings.ToLower(strings.TrimSpace(addr)))
}

// Resolve maps a name or address to a contact. Addresses take priority so a
// literal address always resolves even when it collides with a display name.
func (s *Service) Resolve(ctx context.Context, nameOrAddr string) (*Contact, error) {
	if strings.Contains(nameOrAddr, "@") {
		return s.repo.GetByAddress(ctx, strings.ToLower(strings.TrimSpace(nameOrAddr)))
	}
	return s.repo.FindByName(ctx, nameOrAddr)
}

// List returns every contact.
func (s *Service) List(ctx context.Context) ([]*Contact, error) {
	return s.repo.List(ctx)
}

// ShouldBounce reports whether an unknown sender is due a courtesy reply,
// and records the bounce when it is.
func (s *Service) ShouldBounce(addr string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastBounce[addr]; ok && now.Sub(last) < BounceInterval {
		return false
	}
	s.lastBounce[addr] = now
	return true
}

func displayNameFromAddress(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	if local == "" {
		return addr
	}
	return strings.ToUpper(local[:1]) + local[1:]
}
