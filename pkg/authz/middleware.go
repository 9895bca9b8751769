package authz

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cityatlas/cityatlas/pkg/database"
	"github.com/cityatlas/cityatlas/pkg/httputil"
	"github.com/cityatlas/cityatlas/pkg/observability"
)

// RequireAction returns mux middleware that authorizes the request before
// the handler runs. The principal comes from the request context (set by
// the identity middleware) and the tenant from the {tenant_id} path
// variable, when present. A Deny answers 403 with the uniform reason.
func (s *Service) RequireAction(action Action) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if action == ActionReadPublic {
				next.ServeHTTP(w, r)
				return
			}

			principalID, err := strconv.ParseInt(observability.GetPrincipalID(ctx), 10, 64)
			if err != nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			tenantID := mux.Vars(r)["tenant_id"]
			if tenantID != "" {
				ctx = observability.WithTenantID(ctx, tenantID)
				r = r.WithContext(ctx)
			}

			decision, err := s.Resolve(ctx, principalID, tenantID, action)
			if err != nil {
				if errors.Is(err, database.ErrUnavailable) {
					httputil.WriteServiceUnavailable(w, "temporarily unavailable")
					return
				}
				observability.FromContext(ctx).WithError(err).Error("authorization check failed")
				httputil.WriteInternalError(w, err)
				return
			}

			if !decision.Allowed {
				httputil.WriteForbidden(w, decision.Reason)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
