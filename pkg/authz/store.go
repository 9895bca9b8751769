package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/cityatlas/cityatlas/pkg/identity"
)

// GrantStore provides access to the grants table
type GrantStore struct {
	db *sql.DB
}

// NewGrantStore creates a new grant store
func NewGrantStore(db *sql.DB) *GrantStore {
	return &GrantStore{db: db}
}

// Get retrieves the grant for (tenant, principal). Returns (nil, nil) when
// no grant exists; absence is a normal resolver input, not an error.
func (s *GrantStore) Get(ctx context.Context, tenantID string, principalID int64) (*Grant, error) {
	query := `
		SELECT tenant_id, principal_id, role, granted_by, granted_at
		FROM grants
		WHERE tenant_id = $1 AND principal_id = $2
	`
	g := &Grant{}
	err := s.db.QueryRowContext(ctx, query, tenantID, principalID).
		Scan(&g.TenantID, &g.PrincipalID, &g.Role, &g.GrantedBy, &g.GrantedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}

	return g, nil
}

// ListByTenant retrieves all grants for a tenant
func (s *GrantStore) ListByTenant(ctx context.Context, tenantID string) ([]*Grant, error) {
	query := `
		SELECT tenant_id, principal_id, role, granted_by, granted_at
		FROM grants
		WHERE tenant_id = $1
		ORDER BY granted_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []*Grant
	for rows.Next() {
		g := &Grant{}
		if err := rows.Scan(&g.TenantID, &g.PrincipalID, &g.Role, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}

	return grants, rows.Err()
}

// ListByPrincipal retrieves all grants held by a principal
func (s *GrantStore) ListByPrincipal(ctx context.Context, principalID int64) ([]*Grant, error) {
	query := `
		SELECT tenant_id, principal_id, role, granted_by, granted_at
		FROM grants
		WHERE principal_id = $1
		ORDER BY granted_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []*Grant
	for rows.Next() {
		g := &Grant{}
		if err := rows.Scan(&g.TenantID, &g.PrincipalID, &g.Role, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}

	return grants, rows.Err()
}

// Insert creates a new grant row and fails with ErrDuplicateGrant if the
// (tenant, principal) pair already holds one. A duplicate never silently
// overwrites the existing role.
func (s *GrantStore) Insert(ctx context.Context, g *Grant) error {
	if !g.Role.TenantAssignable() {
		return fmt.Errorf("role %q cannot be stored in a grant", g.Role)
	}

	query := `
		INSERT INTO grants (tenant_id, principal_id, role, granted_by)
		VALUES ($1, $2, $3, $4)
		RETURNING granted_at
	`
	err := s.db.QueryRowContext(ctx, query, g.TenantID, g.PrincipalID, g.Role, g.GrantedBy).
		Scan(&g.GrantedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateGrant
		}
		return fmt.Errorf("failed to insert grant: %w", err)
	}

	return nil
}

// Upsert creates or updates a grant in a single atomic statement.
// Granting an existing pair the same role is a no-op; a different role is
// an update. There is never an observable state with two roles, and a
// concurrent upsert for the same pair observes the other's committed row.
func (s *GrantStore) Upsert(ctx context.Context, g *Grant) error {
	if !g.Role.TenantAssignable() {
		return fmt.Errorf("role %q cannot be stored in a grant", g.Role)
	}

	query := `
		INSERT INTO grants (tenant_id, principal_id, role, granted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, principal_id) DO UPDATE
		SET role = EXCLUDED.role, granted_by = EXCLUDED.granted_by
		RETURNING granted_at
	`
	err := s.db.QueryRowContext(ctx, query, g.TenantID, g.PrincipalID, g.Role, g.GrantedBy).
		Scan(&g.GrantedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}

	return nil
}

// Revoke deletes a grant. Revoking the last remaining admin grant of a
// tenant is rejected inside the transaction unless an active platform
// superuser still provides an administration path.
func (s *GrantStore) Revoke(ctx context.Context, tenantID string, principalID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var role identity.Role
	err = tx.QueryRowContext(ctx,
		`SELECT role FROM grants WHERE tenant_id = $1 AND principal_id = $2 FOR UPDATE`,
		tenantID, principalID,
	).Scan(&role)
	if err == sql.ErrNoRows {
		return ErrGrantNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock grant: %w", err)
	}

	if role == identity.RoleAdmin {
		var adminCount int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM grants WHERE tenant_id = $1 AND role = $2`,
			tenantID, identity.RoleAdmin,
		).Scan(&adminCount)
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}

		if adminCount <= 1 {
			var superuserExists bool
			err = tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM principals WHERE platform_role = $1 AND is_active)`,
				identity.RoleSuperuser,
			).Scan(&superuserExists)
			if err != nil {
				return fmt.Errorf("failed to check superuser path: %w", err)
			}

			if !superuserExists {
				return &InvariantViolationError{
					TenantID: tenantID,
					Message:  "cannot revoke the last administrator",
				}
			}
		}
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM grants WHERE tenant_id = $1 AND principal_id = $2`,
		tenantID, principalID,
	); err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}

	return tx.Commit()
}
