package api

import (
	"net/http"
	"strconv"

	"github.com/cityatlas/cityatlas/pkg/httputil"
	"github.com/cityatlas/cityatlas/pkg/observability"
	"github.com/cityatlas/cityatlas/pkg/tenant"
)

// callerID returns the authenticated principal's ID from the request
// context. Routes behind RequireAction always have one; read-public
// routes may return zero for anonymous callers.
func callerID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(observability.GetPrincipalID(r.Context()), 10, 64)
	return id
}

func (s *Server) createTenant(w http.ResponseWriter, r *http.Request) {
	var req tenant.CreateTenantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.DisplayName == "" {
		httputil.WriteBadRequest(w, "display_name is required")
		return
	}
	if !tenant.ValidSlug(req.ID) {
		httputil.WriteBadRequest(w, "id must be a lowercase slug")
		return
	}

	t := &tenant.Tenant{
		ID:            req.ID,
		DisplayName:   req.DisplayName,
		DefaultLocale: req.DefaultLocale,
	}
	if err := s.tenants.Create(r.Context(), t); err != nil {
		s.writeError(w, r, err)
		return
	}

	httputil.WriteCreated(w, t)
}

func (s *Server) listTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.tenants.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tenants)
}

func (s *Server) getTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	t, err := s.tenants.Get(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, t)
}

func (s *Server) updateTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	var req struct {
		DisplayName   string `json:"display_name"`
		DefaultLocale string `json:"default_locale"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.DisplayName == "" {
		httputil.WriteBadRequest(w, "display_name is required")
		return
	}

	if err := s.tenants.Update(r.Context(), tenantID, req.DisplayName, req.DefaultLocale); err != nil {
		s.writeError(w, r, err)
		return
	}

	t, err := s.tenants.Get(r.Context(), tenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, t)
}

// deactivateTenant disables a tenant. Tenants are never deleted; their
// data stays intact for reactivation.
func (s *Server) deactivateTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	if err := s.tenants.Deactivate(r.Context(), tenantID); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
