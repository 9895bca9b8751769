package api

import (
	"net/http"

	"github.com/cityatlas/cityatlas/pkg/httputil"
	"github.com/cityatlas/cityatlas/pkg/identity"
	"github.com/cityatlas/cityatlas/pkg/tenant"
)

func (s *Server) listGrants(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	grants, err := s.authz.ListGrants(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, grants)
}

func (s *Server) putGrant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "principal_id")
	if !ok {
		return
	}

	var req struct {
		Role identity.Role `json:"role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Role == "" {
		httputil.WriteBadRequest(w, "role is required")
		return
	}

	grant, err := s.authz.Grant(r.Context(), callerID(r), targetID, tenantID, req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, grant)
}

func (s *Server) revokeGrant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "principal_id")
	if !ok {
		return
	}

	if err := s.authz.Revoke(r.Context(), callerID(r), targetID, tenantID); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) createInvitation(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	var req tenant.InviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "email is required")
		return
	}
	if !req.Role.TenantAssignable() {
		httputil.WriteBadRequest(w, "role must be operator or admin")
		return
	}

	actorID := callerID(r)
	inv := &tenant.Invitation{
		TenantID:  tenantID,
		Email:     req.Email,
		Role:      req.Role,
		InvitedBy: &actorID,
	}
	if err := s.tenants.CreateInvitation(r.Context(), inv); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, inv)
}

func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	invitations, err := s.tenants.ListInvitations(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, invitations)
}

// acceptInvitation consumes an invitation token for the authenticated
// caller. It is the one grant-creating path that needs no tenant role:
// the invitation itself is the authorization.
func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	principalID := callerID(r)
	if principalID == 0 {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	if err := s.tenants.AcceptInvitation(r.Context(), token, principalID); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
