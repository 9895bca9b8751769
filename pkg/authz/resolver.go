package authz

import (
	"fmt"

	"github.com/cityatlas/cityatlas/pkg/identity"
)

// Resolve is the pure authorization decision function. It has no side
// effects and touches no store: the caller supplies the principal's
// platform role and the grant row for the target tenant, if any.
//
// Rules, in order:
//   - a malformed action panics: it is a programming error, not a Deny
//   - read-public is always allowed, grants or not
//   - a superuser platform role allows everything
//   - manage-platform requires the superuser platform role
//   - tenant-scoped writes require a grant for that exact tenant whose
//     role satisfies the fixed minimum-role table
//
// A grant scoped to a different tenant never contributes to the decision.
func Resolve(platformRole identity.Role, grant *Grant, tenantID string, action Action) Decision {
	if !action.Valid() {
		panic(fmt.Sprintf("authz: unknown action %q", action))
	}

	if action == ActionReadPublic {
		return allow("public read")
	}

	if platformRole == identity.RoleSuperuser {
		return allow("platform superuser")
	}

	if action == ActionManagePlatform {
		return deny()
	}

	if tenantID == "" {
		return deny()
	}

	if grant == nil || grant.TenantID != tenantID {
		return deny()
	}

	if grant.Role.Satisfies(minTenantRole[action]) {
		return allow(fmt.Sprintf("tenant role %s", grant.Role))
	}

	return deny()
}
