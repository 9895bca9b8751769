package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cityatlas/cityatlas/pkg/audit"
	"github.com/cityatlas/cityatlas/pkg/database"
	"github.com/cityatlas/cityatlas/pkg/identity"
	"github.com/cityatlas/cityatlas/pkg/observability"
)

// Service loads principals and grants from the store and applies the pure
// resolver. It also owns the privileged mutations: granting, revoking, and
// platform role changes, with their escalation guards and audit trail.
type Service struct {
	db         *sql.DB
	principals *identity.Store
	grants     *GrantStore
	audit      audit.Logger
	metrics    *observability.Metrics
}

// NewService creates an authorization service. auditLogger and metrics may
// be nil in tests.
func NewService(db *sql.DB, principals *identity.Store, grants *GrantStore, auditLogger audit.Logger, metrics *observability.Metrics) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{
		db:         db,
		principals: principals,
		grants:     grants,
		audit:      auditLogger,
		metrics:    metrics,
	}
}

// Resolve loads the principal's platform role and the grant for tenantID,
// then applies the pure resolver. Nothing is cached between calls: a
// revoked grant takes effect on the next request.
//
// An unknown or deactivated principal resolves to Deny for everything but
// read-public. Transient store failures are retried; exhaustion surfaces
// as database.ErrUnavailable so callers can answer unavailable instead of
// denied.
func (s *Service) Resolve(ctx context.Context, principalID int64, tenantID string, action Action) (Decision, error) {
	if !action.Valid() {
		panic(fmt.Sprintf("authz: unknown action %q", action))
	}

	if action == ActionReadPublic {
		d := allow("public read")
		s.recordDecision(action, d)
		return d, nil
	}

	role, err := s.loadPlatformRole(ctx, principalID)
	if err != nil {
		return Decision{}, err
	}

	var grant *Grant
	if tenantID != "" && role != identity.RoleSuperuser {
		err = database.WithRetry(ctx, func() error {
			var inner error
			grant, inner = s.grants.Get(ctx, tenantID, principalID)
			return inner
		})
		if err != nil {
			return Decision{}, err
		}
	}

	d := Resolve(role, grant, tenantID, action)
	s.recordDecision(action, d)
	if !d.Allowed {
		s.audit.Log(ctx, &audit.Event{
			Type:        audit.EventAccessDenied,
			PrincipalID: &principalID,
			TenantID:    tenantID,
			Action:      string(action),
		})
	}

	return d, nil
}

// Grant assigns a tenant-scoped role to a principal. The actor must hold
// manage-tenant-users on the tenant. Tenant admins may grant only the
// operator role; granting admin, or any role outside the tenant set, is a
// privilege escalation unless the actor is a platform superuser.
//
// Granting an existing (tenant, principal) pair the same role is an
// idempotent no-op; a different role is an atomic single-statement update.
func (s *Service) Grant(ctx context.Context, actorID, targetID int64, tenantID string, role identity.Role) (*Grant, error) {
	actor, err := s.authorize(ctx, actorID, tenantID, ActionManageTenantUsers)
	if err != nil {
		return nil, err
	}

	if !role.TenantAssignable() || (role == identity.RoleAdmin && actor.PlatformRole != identity.RoleSuperuser) {
		return nil, s.rejectEscalation(ctx, actorID, &targetID, tenantID, role)
	}

	var existing *Grant
	err = database.WithRetry(ctx, func() error {
		var inner error
		existing, inner = s.grants.Get(ctx, tenantID, targetID)
		return inner
	})
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Role == role {
		return existing, nil
	}

	g := &Grant{
		TenantID:    tenantID,
		PrincipalID: targetID,
		Role:        role,
		GrantedBy:   &actorID,
	}
	if err = database.WithRetry(ctx, func() error {
		return s.grants.Upsert(ctx, g)
	}); err != nil {
		s.recordMutation("grant", "error")
		return nil, err
	}

	eventType := audit.EventGrantCreated
	if existing != nil {
		eventType = audit.EventGrantUpdated
	}
	s.audit.Log(ctx, &audit.Event{
		Type:        eventType,
		PrincipalID: &actorID,
		TargetID:    &targetID,
		TenantID:    tenantID,
		Action:      string(ActionManageTenantUsers),
		Detail:      fmt.Sprintf("granted role %s", role),
	})
	s.recordMutation("grant", "ok")

	return g, nil
}

// Revoke removes a principal's grant on a tenant. The actor must hold
// manage-tenant-users; revoking an admin grant additionally requires the
// superuser platform role, mirroring the grant-side escalation guard.
// Revoking the tenant's last administration path is rejected.
func (s *Service) Revoke(ctx context.Context, actorID, targetID int64, tenantID string) error {
	actor, err := s.authorize(ctx, actorID, tenantID, ActionManageTenantUsers)
	if err != nil {
		return err
	}

	var existing *Grant
	err = database.WithRetry(ctx, func() error {
		var inner error
		existing, inner = s.grants.Get(ctx, tenantID, targetID)
		return inner
	})
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrGrantNotFound
	}

	if existing.Role == identity.RoleAdmin && actor.PlatformRole != identity.RoleSuperuser {
		return s.rejectEscalation(ctx, actorID, &targetID, tenantID, existing.Role)
	}

	err = database.WithRetry(ctx, func() error {
		return s.grants.Revoke(ctx, tenantID, targetID)
	})
	if err != nil {
		if IsInvariantViolation(err) {
			s.audit.Log(ctx, &audit.Event{
				Type:        audit.EventInvariantViolation,
				PrincipalID: &actorID,
				TargetID:    &targetID,
				TenantID:    tenantID,
				Detail:      err.Error(),
			})
		}
		s.recordMutation("revoke", "error")
		return err
	}

	s.audit.Log(ctx, &audit.Event{
		Type:        audit.EventGrantRevoked,
		PrincipalID: &actorID,
		TargetID:    &targetID,
		TenantID:    tenantID,
		Action:      string(ActionManageTenantUsers),
		Detail:      fmt.Sprintf("revoked role %s", existing.Role),
	})
	s.recordMutation("revoke", "ok")

	return nil
}

// ListGrants returns a tenant's grants. Authorization happens at the
// route level; this is a plain read with bounded retries.
func (s *Service) ListGrants(ctx context.Context, tenantID string) ([]*Grant, error) {
	var grants []*Grant
	err := database.WithRetry(ctx, func() error {
		var inner error
		grants, inner = s.grants.ListByTenant(ctx, tenantID)
		return inner
	})
	return grants, err
}

// ListPrincipalGrants returns every tenant grant a principal holds
func (s *Service) ListPrincipalGrants(ctx context.Context, principalID int64) ([]*Grant, error) {
	var grants []*Grant
	err := database.WithRetry(ctx, func() error {
		var inner error
		grants, inner = s.grants.ListByPrincipal(ctx, principalID)
		return inner
	})
	return grants, err
}

// SetPlatformRole promotes or demotes a principal's platform-wide role.
// Requires manage-platform, which only superusers resolve Allow for.
func (s *Service) SetPlatformRole(ctx context.Context, actorID, targetID int64, role identity.Role) error {
	if _, err := s.authorize(ctx, actorID, "", ActionManagePlatform); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("invalid platform role: %s", role)
	}

	err := database.WithRetry(ctx, func() error {
		return s.principals.SetPlatformRole(ctx, targetID, role)
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, &audit.Event{
		Type:        audit.EventRoleChanged,
		PrincipalID: &actorID,
		TargetID:    &targetID,
		Action:      string(ActionManagePlatform),
		Detail:      fmt.Sprintf("platform role set to %s", role),
	})

	return nil
}

// PromoteAndGrant changes a principal's platform role and assigns a tenant
// grant in one transaction, so a partially applied promotion is never
// observable. Requires manage-platform.
func (s *Service) PromoteAndGrant(ctx context.Context, actorID, targetID int64, platformRole identity.Role, tenantID string, tenantRole identity.Role) error {
	if _, err := s.authorize(ctx, actorID, "", ActionManagePlatform); err != nil {
		return err
	}
	if !platformRole.Valid() {
		return fmt.Errorf("invalid platform role: %s", platformRole)
	}
	if !tenantRole.TenantAssignable() {
		return fmt.Errorf("role %q cannot be stored in a grant", tenantRole)
	}

	err := database.WithRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		result, err := tx.ExecContext(ctx,
			`UPDATE principals SET platform_role = $1, updated_at = NOW() WHERE id = $2`,
			platformRole, targetID,
		)
		if err != nil {
			return fmt.Errorf("failed to update platform role: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return identity.ErrNotFound
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO grants (tenant_id, principal_id, role, granted_by)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id, principal_id) DO UPDATE
			SET role = EXCLUDED.role, granted_by = EXCLUDED.granted_by
		`, tenantID, targetID, tenantRole, actorID); err != nil {
			return fmt.Errorf("failed to upsert grant: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, &audit.Event{
		Type:        audit.EventRoleChanged,
		PrincipalID: &actorID,
		TargetID:    &targetID,
		TenantID:    tenantID,
		Action:      string(ActionManagePlatform),
		Detail:      fmt.Sprintf("platform role set to %s with %s grant on %s", platformRole, tenantRole, tenantID),
	})

	return nil
}

// authorize resolves action for the actor and returns the actor's
// principal row on Allow. Deny surfaces as ErrDenied; the uniform reason
// is already recorded by Resolve.
func (s *Service) authorize(ctx context.Context, actorID int64, tenantID string, action Action) (*identity.Principal, error) {
	var actor *identity.Principal
	err := database.WithRetry(ctx, func() error {
		var inner error
		actor, inner = s.principals.Get(ctx, actorID)
		return inner
	})
	if errors.Is(err, identity.ErrNotFound) {
		return nil, ErrDenied
	}
	if err != nil {
		return nil, err
	}

	role := actor.PlatformRole
	if !actor.IsActive {
		role = ""
	}

	var grant *Grant
	if tenantID != "" && role != identity.RoleSuperuser {
		err = database.WithRetry(ctx, func() error {
			var inner error
			grant, inner = s.grants.Get(ctx, tenantID, actorID)
			return inner
		})
		if err != nil {
			return nil, err
		}
	}

	d := Resolve(role, grant, tenantID, action)
	s.recordDecision(action, d)
	if !d.Allowed {
		s.audit.Log(ctx, &audit.Event{
			Type:        audit.EventAccessDenied,
			PrincipalID: &actorID,
			TenantID:    tenantID,
			Action:      string(action),
		})
		return nil, ErrDenied
	}

	return actor, nil
}

func (s *Service) loadPlatformRole(ctx context.Context, principalID int64) (identity.Role, error) {
	var principal *identity.Principal
	err := database.WithRetry(ctx, func() error {
		var inner error
		principal, inner = s.principals.Get(ctx, principalID)
		return inner
	})
	if errors.Is(err, identity.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !principal.IsActive {
		return "", nil
	}
	return principal.PlatformRole, nil
}

func (s *Service) rejectEscalation(ctx context.Context, actorID int64, targetID *int64, tenantID string, role identity.Role) error {
	s.audit.Log(ctx, &audit.Event{
		Type:        audit.EventEscalationAttempt,
		PrincipalID: &actorID,
		TargetID:    targetID,
		TenantID:    tenantID,
		Action:      string(ActionManageTenantUsers),
		Detail:      fmt.Sprintf("attempted to manage role %s", role),
	})
	if s.metrics != nil {
		s.metrics.EscalationAttemptsTotal.WithLabelValues(tenantID).Inc()
	}
	return &PrivilegeEscalationError{ActorID: actorID, TenantID: tenantID, Role: role}
}

func (s *Service) recordDecision(action Action, d Decision) {
	if s.metrics == nil {
		return
	}
	decision := "deny"
	if d.Allowed {
		decision = "allow"
	}
	s.metrics.AuthzDecisionsTotal.WithLabelValues(string(action), decision).Inc()
}

func (s *Service) recordMutation(operation, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.GrantMutationsTotal.WithLabelValues(operation, status).Inc()
}
