package api

import (
	"net/http"

	"github.com/cityatlas/cityatlas/pkg/httputil"
	"github.com/cityatlas/cityatlas/pkg/identity"
)

func (s *Server) createPrincipal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username     string        `json:"username"`
		Email        string        `json:"email"`
		PlatformRole identity.Role `json:"platform_role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Username == "" {
		httputil.WriteBadRequest(w, "username is required")
		return
	}
	if req.PlatformRole != "" && !req.PlatformRole.Valid() {
		httputil.WriteBadRequest(w, "invalid platform role")
		return
	}

	p := &identity.Principal{
		Username:     req.Username,
		Email:        req.Email,
		PlatformRole: req.PlatformRole,
	}
	if err := s.principals.Create(r.Context(), p); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, p)
}

func (s *Server) listPrincipals(w http.ResponseWriter, r *http.Request) {
	principals, err := s.principals.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, principals)
}

func (s *Server) listPrincipalGrants(w http.ResponseWriter, r *http.Request) {
	principalID, ok := httputil.ParsePathInt64OrError(w, r, "principal_id")
	if !ok {
		return
	}

	grants, err := s.authz.ListPrincipalGrants(r.Context(), principalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, grants)
}

func (s *Server) setPlatformRole(w http.ResponseWriter, r *http.Request) {
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "principal_id")
	if !ok {
		return
	}

	// An optional tenant grant rides along with the promotion; both land
	// in one transaction so a partial promotion is never observable.
	var req struct {
		Role       identity.Role `json:"role"`
		TenantID   string        `json:"tenant_id"`
		TenantRole identity.Role `json:"tenant_role"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		httputil.WriteBadRequest(w, "invalid platform role")
		return
	}

	if req.TenantID != "" {
		if !req.TenantRole.TenantAssignable() {
			httputil.WriteBadRequest(w, "tenant_role must be operator or admin")
			return
		}
		if err := s.authz.PromoteAndGrant(r.Context(), callerID(r), targetID, req.Role, req.TenantID, req.TenantRole); err != nil {
			s.writeError(w, r, err)
			return
		}
		httputil.WriteNoContent(w)
		return
	}

	if err := s.authz.SetPlatformRole(r.Context(), callerID(r), targetID, req.Role); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
