package authz

import (
	"time"

	"github.com/cityatlas/cityatlas/pkg/identity"
)

// Action classifies a request for authorization purposes.
// The set is closed: an unknown action is a programming error, not a Deny.
type Action string

const (
	ActionReadPublic           Action = "read-public"
	ActionWriteTenantData      Action = "write-tenant-data"
	ActionManageTenantSettings Action = "manage-tenant-settings"
	ActionManageTenantUsers    Action = "manage-tenant-users"
	ActionManagePlatform       Action = "manage-platform"
)

// Valid reports whether the action is a member of the closed set
func (a Action) Valid() bool {
	switch a {
	case ActionReadPublic, ActionWriteTenantData, ActionManageTenantSettings,
		ActionManageTenantUsers, ActionManagePlatform:
		return true
	}
	return false
}

// minTenantRole is the fixed minimum-role-per-action table for
// tenant-scoped actions. Role comparison is monotone: a higher role
// always satisfies a lower requirement.
var minTenantRole = map[Action]identity.Role{
	ActionWriteTenantData:      identity.RoleOperator,
	ActionManageTenantSettings: identity.RoleAdmin,
	ActionManageTenantUsers:    identity.RoleAdmin,
}

// Grant ties a principal to a tenant with a tenant-scoped role.
// Composite key (tenant, principal); superuser access is implicit from the
// platform role and never stored as a grant row.
type Grant struct {
	TenantID    string        `json:"tenant_id"`
	PrincipalID int64         `json:"principal_id"`
	Role        identity.Role `json:"role"`
	GrantedBy   *int64        `json:"granted_by,omitempty"`
	GrantedAt   time.Time     `json:"granted_at"`
}

// Decision is the result of an authorization check
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// denyReason is deliberately uniform so callers cannot distinguish
// "tenant unknown" from "no grant" and leak existence information.
const denyReason = "not authorized"

func allow(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}

func deny() Decision {
	return Decision{Allowed: false, Reason: denyReason}
}
