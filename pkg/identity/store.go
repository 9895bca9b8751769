package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a principal does not exist
var ErrNotFound = errors.New("principal not found")

// ErrUsernameTaken is returned when creating a principal with a username
// that already exists
var ErrUsernameTaken = errors.New("username already taken")

// Store provides access to the principals table
type Store struct {
	db *sql.DB
}

// NewStore creates a new principal store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new principal. New accounts start with the lowest
// platform role unless one is set explicitly.
func (s *Store) Create(ctx context.Context, p *Principal) error {
	if p.PlatformRole == "" {
		p.PlatformRole = RoleOperator
	}
	if !p.PlatformRole.Valid() {
		return fmt.Errorf("invalid platform role: %s", p.PlatformRole)
	}

	query := `
		INSERT INTO principals (username, email, platform_role, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, is_active, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, p.Username, p.Email, p.PlatformRole).
		Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to create principal: %w", err)
	}

	return nil
}

// Get retrieves a principal by ID
func (s *Store) Get(ctx context.Context, id int64) (*Principal, error) {
	query := `
		SELECT id, username, email, platform_role, is_active, created_at, updated_at
		FROM principals
		WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetByUsername retrieves a principal by username
func (s *Store) GetByUsername(ctx context.Context, username string) (*Principal, error) {
	query := `
		SELECT id, username, email, platform_role, is_active, created_at, updated_at
		FROM principals
		WHERE username = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, username))
}

// SetPlatformRole updates a principal's platform-wide role.
// Authorization for this privileged mutation lives in pkg/authz.
func (s *Store) SetPlatformRole(ctx context.Context, id int64, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid platform role: %s", role)
	}

	query := `UPDATE principals SET platform_role = $1, updated_at = NOW() WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, role, id)
	if err != nil {
		return fmt.Errorf("failed to update platform role: %w", err)
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

// List retrieves all principals ordered by creation time
func (s *Store) List(ctx context.Context) ([]*Principal, error) {
	query := `
		SELECT id, username, email, platform_role, is_active, created_at, updated_at
		FROM principals
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list principals: %w", err)
	}
	defer rows.Close()

	var principals []*Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}

	return principals, rows.Err()
}

func (s *Store) scanOne(row *sql.Row) (*Principal, error) {
	p := &Principal{}
	var email sql.NullString
	err := row.Scan(&p.ID, &p.Username, &email, &p.PlatformRole, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}
	if email.Valid {
		p.Email = email.String
	}
	return p, nil
}

func scanPrincipal(rows *sql.Rows) (*Principal, error) {
	p := &Principal{}
	var email sql.NullString
	if err := rows.Scan(&p.ID, &p.Username, &email, &p.PlatformRole, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan principal: %w", err)
	}
	if email.Valid {
		p.Email = email.String
	}
	return p, nil
}
