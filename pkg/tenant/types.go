package tenant

import (
	"time"

	"github.com/cityatlas/cityatlas/pkg/identity"
)

// Tenant represents an isolated city instance sharing platform infrastructure.
// Tenants are never deleted, only deactivated.
type Tenant struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"display_name"`
	DefaultLocale string    `json:"default_locale"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Invitation represents an invitation to join a tenant with a scoped role
type Invitation struct {
	ID         int64         `json:"id"`
	TenantID   string        `json:"tenant_id"`
	Email      string        `json:"email"`
	Role       identity.Role `json:"role"`
	Token      string        `json:"token,omitempty"`
	InvitedBy  *int64        `json:"invited_by,omitempty"`
	InvitedAt  time.Time     `json:"invited_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
	AcceptedAt *time.Time    `json:"accepted_at,omitempty"`
	AcceptedBy *int64        `json:"accepted_by,omitempty"`
}

// CreateTenantRequest represents a request to create a tenant
type CreateTenantRequest struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name"`
	DefaultLocale string `json:"default_locale,omitempty"`
}

// InviteRequest represents a request to invite a member to a tenant
type InviteRequest struct {
	Email string        `json:"email"`
	Role  identity.Role `json:"role"`
}
