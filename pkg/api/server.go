package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cityatlas/cityatlas/pkg/authz"
	"github.com/cityatlas/cityatlas/pkg/identity"
	"github.com/cityatlas/cityatlas/pkg/middleware"
	"github.com/cityatlas/cityatlas/pkg/observability"
	"github.com/cityatlas/cityatlas/pkg/styling"
	"github.com/cityatlas/cityatlas/pkg/taxonomy"
	"github.com/cityatlas/cityatlas/pkg/tenant"
)

// Server is the HTTP API for the platform core: tenants, grants,
// taxonomy schemas, assignments, and map rendering descriptors.
type Server struct {
	router     *mux.Router
	authz      *authz.Service
	principals *identity.Store
	tenants    *tenant.Store
	taxonomies *taxonomy.Store
	generator  *styling.Generator
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewServer creates the API server with all routes registered
func NewServer(
	authzService *authz.Service,
	principals *identity.Store,
	tenants *tenant.Store,
	taxonomies *taxonomy.Store,
	generator *styling.Generator,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		authz:      authzService,
		principals: principals,
		tenants:    tenants,
		taxonomies: taxonomies,
		generator:  generator,
		logger:     logger,
		metrics:    metrics,
	}
	s.setupRoutes()
	return s
}

// Router returns the configured HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.Identity)
	s.router.Use(middleware.TenantContext(s.tenants))

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Principal management
	api.Handle("/principals",
		s.protect(authz.ActionManagePlatform, s.createPrincipal)).Methods("POST")
	api.Handle("/principals",
		s.protect(authz.ActionManagePlatform, s.listPrincipals)).Methods("GET")
	api.Handle("/principals/{principal_id}/role",
		s.protect(authz.ActionManagePlatform, s.setPlatformRole)).Methods("PUT")
	api.Handle("/principals/{principal_id}/grants",
		s.protect(authz.ActionManagePlatform, s.listPrincipalGrants)).Methods("GET")

	// Tenant management
	api.Handle("/tenants",
		s.protect(authz.ActionManagePlatform, s.createTenant)).Methods("POST")
	api.Handle("/tenants",
		s.protect(authz.ActionReadPublic, s.listTenants)).Methods("GET")
	api.Handle("/tenants/{tenant_id}",
		s.protect(authz.ActionReadPublic, s.getTenant)).Methods("GET")
	api.Handle("/tenants/{tenant_id}",
		s.protect(authz.ActionManageTenantSettings, s.updateTenant)).Methods("PATCH")
	api.Handle("/tenants/{tenant_id}",
		s.protect(authz.ActionManagePlatform, s.deactivateTenant)).Methods("DELETE")

	// Grants
	api.Handle("/tenants/{tenant_id}/grants",
		s.protect(authz.ActionManageTenantUsers, s.listGrants)).Methods("GET")
	api.Handle("/tenants/{tenant_id}/grants/{principal_id}",
		s.protect(authz.ActionManageTenantUsers, s.putGrant)).Methods("PUT")
	api.Handle("/tenants/{tenant_id}/grants/{principal_id}",
		s.protect(authz.ActionManageTenantUsers, s.revokeGrant)).Methods("DELETE")

	// Invitations
	api.Handle("/tenants/{tenant_id}/invitations",
		s.protect(authz.ActionManageTenantUsers, s.createInvitation)).Methods("POST")
	api.Handle("/tenants/{tenant_id}/invitations",
		s.protect(authz.ActionManageTenantUsers, s.listInvitations)).Methods("GET")
	api.Handle("/invitations/{token}/accept",
		http.HandlerFunc(s.acceptInvitation)).Methods("POST")

	// Taxonomy schema
	api.Handle("/tenants/{tenant_id}/taxonomy/types",
		s.protect(authz.ActionManageTenantSettings, s.createType)).Methods("POST")
	api.Handle("/tenants/{tenant_id}/taxonomy/types",
		s.protect(authz.ActionReadPublic, s.listTypes)).Methods("GET")
	api.Handle("/tenants/{tenant_id}/taxonomy/types/{type_id}",
		s.protect(authz.ActionManageTenantSettings, s.updateType)).Methods("PATCH")
	api.Handle("/tenants/{tenant_id}/taxonomy/types/{type_id}",
		s.protect(authz.ActionManageTenantSettings, s.deleteType)).Methods("DELETE")
	api.Handle("/tenants/{tenant_id}/taxonomy/types/{type_id}/retire",
		s.protect(authz.ActionManageTenantSettings, s.retireType)).Methods("POST")
	api.Handle("/tenants/{tenant_id}/taxonomy/types/{type_id}/values",
		s.protect(authz.ActionManageTenantSettings, s.createValue)).Methods("POST")
	api.Handle("/tenants/{tenant_id}/taxonomy/types/{type_id}/values",
		s.protect(authz.ActionReadPublic, s.listValues)).Methods("GET")
	api.Handle("/tenants/{tenant_id}/taxonomy/values/{value_id}",
		s.protect(authz.ActionManageTenantSettings, s.updateValue)).Methods("PATCH")
	api.Handle("/tenants/{tenant_id}/taxonomy/values/{value_id}",
		s.protect(authz.ActionManageTenantSettings, s.deleteValue)).Methods("DELETE")
	api.Handle("/tenants/{tenant_id}/taxonomy/seed",
		s.protect(authz.ActionManageTenantSettings, s.importSeed)).Methods("POST")

	// Assignments
	api.Handle("/tenants/{tenant_id}/records/{record_id}/taxonomy/{type_id}",
		s.protect(authz.ActionWriteTenantData, s.replaceAssignments)).Methods("PUT")
	api.Handle("/tenants/{tenant_id}/records/{record_id}/taxonomy",
		s.protect(authz.ActionReadPublic, s.listAssignments)).Methods("GET")
	api.Handle("/tenants/{tenant_id}/records/{record_id}/finalize-check",
		s.protect(authz.ActionWriteTenantData, s.checkFinalization)).Methods("POST")

	// Map rendering descriptors
	api.Handle("/tenants/{tenant_id}/map/style",
		s.protect(authz.ActionReadPublic, s.getStyleDescriptor)).Methods("GET")
	api.Handle("/tenants/{tenant_id}/map/filters",
		s.protect(authz.ActionReadPublic, s.getFilterDescriptors)).Methods("GET")
}

func (s *Server) protect(action authz.Action, h http.HandlerFunc) http.Handler {
	return s.authz.RequireAction(action)(h)
}
