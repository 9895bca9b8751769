package identity

import "time"

// Role represents a role in the platform's total order.
// The same ordered set backs both platform-wide roles and tenant-scoped
// grant roles; superuser is platform-only and never stored in a grant row.
type Role string

const (
	RoleOperator  Role = "operator"
	RoleAdmin     Role = "admin"
	RoleSuperuser Role = "superuser"
)

// Level returns the position of the role in the total order
// operator < admin < superuser. Unknown roles rank below operator.
func (r Role) Level() int {
	switch r {
	case RoleOperator:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperuser:
		return 3
	default:
		return 0
	}
}

// Satisfies reports whether the role meets a minimum role requirement.
// A higher role always satisfies a lower requirement.
func (r Role) Satisfies(min Role) bool {
	return r.Level() >= min.Level() && r.Level() > 0
}

// Valid reports whether the role is a member of the known set
func (r Role) Valid() bool {
	return r.Level() > 0
}

// TenantAssignable reports whether the role may be stored in a grant row.
// Superuser access is implicit from the platform role and never persisted.
func (r Role) TenantAssignable() bool {
	return r == RoleOperator || r == RoleAdmin
}

// Principal represents an authenticated user account
type Principal struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PlatformRole Role      `json:"platform_role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
