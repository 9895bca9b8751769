package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a tenant does not exist
var ErrNotFound = errors.New("tenant not found")

// ErrSlugTaken is returned when creating a tenant with an ID that exists
var ErrSlugTaken = errors.New("tenant id already taken")

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// ValidSlug reports whether s is a usable tenant identifier
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Store provides access to the tenants table
type Store struct {
	db *sql.DB
}

// NewStore creates a new tenant store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new tenant. Only platform-level operators create tenants;
// the authorization check happens in the API layer.
func (s *Store) Create(ctx context.Context, t *Tenant) error {
	if !ValidSlug(t.ID) {
		return fmt.Errorf("invalid tenant id: %q", t.ID)
	}
	if t.DefaultLocale == "" {
		t.DefaultLocale = "en"
	}

	query := `
		INSERT INTO tenants (id, display_name, default_locale, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING is_active, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, t.ID, t.DisplayName, t.DefaultLocale).
		Scan(&t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrSlugTaken
		}
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	return nil
}

// Get retrieves a tenant by ID
func (s *Store) Get(ctx context.Context, id string) (*Tenant, error) {
	query := `
		SELECT id, display_name, default_locale, is_active, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	t := &Tenant{}
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&t.ID, &t.DisplayName, &t.DefaultLocale, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return t, nil
}

// List retrieves all tenants ordered by creation time
func (s *Store) List(ctx context.Context) ([]*Tenant, error) {
	query := `
		SELECT id, display_name, default_locale, is_active, created_at, updated_at
		FROM tenants
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t := &Tenant{}
		if err := rows.Scan(&t.ID, &t.DisplayName, &t.DefaultLocale, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}

// Update modifies a tenant's display name and default locale
func (s *Store) Update(ctx context.Context, id, displayName, defaultLocale string) error {
	query := `
		UPDATE tenants
		SET display_name = $1, default_locale = $2, updated_at = NOW()
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, displayName, defaultLocale, id)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Deactivate soft-disables a tenant. There is no delete.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE tenants SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate tenant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
