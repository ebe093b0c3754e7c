package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/accord/internal/directory"
	"github.com/rpggio/accord/internal/repository"
)

// ContactRepository implements repository.ContactRepository for SQLite
type ContactRepository struct {
	db *DB
}

// NewContactRepository creates a new ContactRepository
func NewContactRepository(db *DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Upsert creates or updates a contact keyed by address.
func (r *ContactRepository) Upsert(ctx context.Context, c *directory.Contact) error {
	query := `
		INSERT INTO contacts (address, name, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			name = excluded.name,
			role = excluded.role
	`
	return retryOnContention(func() error {
		_, err := r.db.ExecContext(ctx, query,
			c.Address,
			c.Name,
			string(c.Role),
			c.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert contact: %w", err)
		}
		return nil
	})
}

// GetByAddress retrieves a contact by address
func (r *ContactRepository) GetByAddress(ctx context.Context, addr string) (*directory.Contact, error) {
	return r.get(ctx,
		`SELECT address, name, role, created_at FROM contacts WHERE address = ?`, addr)
}

// FindByName retrieves a contact by case-insensitive display name.
func (r *ContactRepository) FindByName(ctx context.Context, name string) (*directory.Contact, error) {
	return r.get(ctx,
		`SELECT address, name, role, created_at FROM contacts WHERE name = ? COLLATE NOCASE`, name)
}

// List returns every contact, ordered by name.
func (r *ContactRepository) List(ctx context.Context) ([]*directory.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT address, name, role, created_at FROM contacts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*directory.Contact
	for rows.Next() {
		c, err := scanContact(rows.Scan)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *ContactRepository) get(ctx context.Context, query, arg string) (*directory.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, query, arg).Scan)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

func scanContact(scan func(...any) error) (*directory.Contact, error) {
	var c directory.Contact
	var role, createdAt string
	if err := scan(&c.Address, &c.Name, &role, &createdAt); err != nil {
		return nil, err
	}
	c.Role = directory.Role(role)
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse contact timestamp: %w", err)
	}
	c.CreatedAt = t
	return &c, nil
}
