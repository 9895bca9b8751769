package middleware

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cityatlas/cityatlas/pkg/httputil"
	"github.com/cityatlas/cityatlas/pkg/observability"
	"github.com/cityatlas/cityatlas/pkg/tenant"
)

// TenantContext resolves the {tenant_id} path variable against the tenant
// store, rejecting unknown and deactivated tenants before handlers run.
// Routes without the variable pass through untouched.
func TenantContext(store *tenant.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, ok := mux.Vars(r)["tenant_id"]
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			t, err := store.Get(r.Context(), tenantID)
			if errors.Is(err, tenant.ErrNotFound) {
				httputil.WriteNotFoundError(w, "tenant not found")
				return
			}
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Error("tenant lookup failed")
				httputil.WriteInternalError(w, err)
				return
			}
			if !t.IsActive {
				httputil.WriteForbidden(w, "tenant is deactivated")
				return
			}

			ctx := observability.WithTenantID(r.Context(), tenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
