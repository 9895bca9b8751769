package authz

import (
	"errors"
	"fmt"

	"github.com/cityatlas/cityatlas/pkg/identity"
)

// ErrDenied is returned when the resolver denies an operation.
// Callers must treat it as a hard stop, never a degraded result.
var ErrDenied = errors.New("authorization denied")

// ErrGrantNotFound is returned when a grant row does not exist
var ErrGrantNotFound = errors.New("grant not found")

// ErrDuplicateGrant is returned when a strict insert collides with an
// existing (tenant, principal) pair. The composite primary key makes a
// silent overwrite impossible; the collision always surfaces.
var ErrDuplicateGrant = errors.New("grant already exists for this tenant and principal")

// PrivilegeEscalationError is returned when a tenant admin attempts to
// grant or revoke a role above operator. It is distinct from an ordinary
// Deny because it indicates a potential abuse attempt and is audited
// separately.
type PrivilegeEscalationError struct {
	ActorID  int64
	TenantID string
	Role     identity.Role
}

func (e *PrivilegeEscalationError) Error() string {
	return fmt.Sprintf("privilege escalation attempt: actor %d may not manage role %q in tenant %q",
		e.ActorID, e.Role, e.TenantID)
}

// IsPrivilegeEscalation checks if an error is a privilege escalation attempt
func IsPrivilegeEscalation(err error) bool {
	var e *PrivilegeEscalationError
	return errors.As(err, &e)
}

// InvariantViolationError is returned when a mutation would break a
// business invariant, such as revoking a tenant's last administrator.
// The mutation is rejected before its transaction commits.
type InvariantViolationError struct {
	TenantID string
	Message  string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation for tenant %q: %s", e.TenantID, e.Message)
}

// IsInvariantViolation checks if an error is an invariant violation
func IsInvariantViolation(err error) bool {
	var e *InvariantViolationError
	return errors.As(err, &e)
}
