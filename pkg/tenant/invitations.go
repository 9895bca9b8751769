package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cityatlas/cityatlas/pkg/identity"
)

const invitationTTL = 7 * 24 * time.Hour

// ErrInvitationNotFound is returned when no invitation matches the token
var ErrInvitationNotFound = errors.New("invitation not found")

// ErrInvitationExpired is returned when accepting a lapsed invitation
var ErrInvitationExpired = errors.New("invitation expired")

// ErrInvitationAccepted is returned when an invitation was already consumed
var ErrInvitationAccepted = errors.New("invitation already accepted")

// CreateInvitation creates or refreshes an invitation for (tenant, email).
// Re-inviting the same address replaces the pending token.
func (s *Store) CreateInvitation(ctx context.Context, inv *Invitation) error {
	if !inv.Role.TenantAssignable() {
		return fmt.Errorf("role %q cannot be granted through an invitation", inv.Role)
	}

	inv.Token = uuid.NewString()
	if inv.InvitedAt.IsZero() {
		inv.InvitedAt = time.Now()
	}
	if inv.ExpiresAt.IsZero() {
		inv.ExpiresAt = inv.InvitedAt.Add(invitationTTL)
	}

	query := `
		INSERT INTO tenant_invitations (tenant_id, email, role, token, invited_by, invited_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, email) DO UPDATE
		SET role = EXCLUDED.role, token = EXCLUDED.token,
		    invited_at = EXCLUDED.invited_at, expires_at = EXCLUDED.expires_at
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, inv.TenantID, inv.Email, inv.Role,
		inv.Token, inv.InvitedBy, inv.InvitedAt, inv.ExpiresAt).
		Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	return nil
}

// GetInvitation retrieves an invitation by token
func (s *Store) GetInvitation(ctx context.Context, token string) (*Invitation, error) {
	query := `
		SELECT id, tenant_id, email, role, token, invited_by, invited_at, expires_at, accepted_at, accepted_by
		FROM tenant_invitations
		WHERE token = $1
	`
	inv := &Invitation{}
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&inv.ID, &inv.TenantID, &inv.Email, &inv.Role, &inv.Token,
		&inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt, &inv.AcceptedAt, &inv.AcceptedBy,
	)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return inv, nil
}

// ListInvitations lists pending invitations for a tenant
func (s *Store) ListInvitations(ctx context.Context, tenantID string) ([]*Invitation, error) {
	query := `
		SELECT id, tenant_id, email, role, token, invited_by, invited_at, expires_at, accepted_at, accepted_by
		FROM tenant_invitations
		WHERE tenant_id = $1 AND accepted_at IS NULL
		ORDER BY invited_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		inv := &Invitation{}
		if err := rows.Scan(
			&inv.ID, &inv.TenantID, &inv.Email, &inv.Role, &inv.Token,
			&inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt, &inv.AcceptedAt, &inv.AcceptedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

// AcceptInvitation accepts an invitation and creates the corresponding grant
// in the same transaction, so a crash cannot leave a consumed invitation
// without its grant.
func (s *Store) AcceptInvitation(ctx context.Context, token string, principalID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, tenant_id, role, expires_at, accepted_at
		FROM tenant_invitations
		WHERE token = $1
		FOR UPDATE
	`
	var id int64
	var tenantID string
	var role identity.Role
	var expiresAt time.Time
	var acceptedAt sql.NullTime

	err = tx.QueryRowContext(ctx, query, token).Scan(&id, &tenantID, &role, &expiresAt, &acceptedAt)
	if err == sql.ErrNoRows {
		return ErrInvitationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get invitation: %w", err)
	}

	if acceptedAt.Valid {
		return ErrInvitationAccepted
	}
	if time.Now().After(expiresAt) {
		return ErrInvitationExpired
	}

	query = `
		INSERT INTO grants (tenant_id, principal_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, principal_id) DO NOTHING
	`
	if _, err = tx.ExecContext(ctx, query, tenantID, principalID, role); err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}

	query = `UPDATE tenant_invitations SET accepted_at = NOW(), accepted_by = $1 WHERE id = $2`
	if _, err = tx.ExecContext(ctx, query, principalID, id); err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}

	return tx.Commit()
}

// CleanupExpiredInvitations removes expired, unaccepted invitations.
// Returns the number of rows removed for job logging.
func (s *Store) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	query := `DELETE FROM tenant_invitations WHERE expires_at < NOW() AND accepted_at IS NULL`
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invitations: %w", err)
	}
	return result.RowsAffected()
}
