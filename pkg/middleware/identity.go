package middleware

import (
	"net/http"
	"strconv"

	"github.com/cityatlas/cityatlas/pkg/httputil"
	"github.com/cityatlas/cityatlas/pkg/observability"
)

// PrincipalIDHeader carries the authenticated principal's ID, set by the
// edge gateway after it verifies credentials. Identity always arrives
// explicitly with the request; nothing in this service reads ambient
// global state to find the caller.
const PrincipalIDHeader = "X-Principal-ID"

// Identity extracts the caller's principal ID from the gateway header
// into the request context. Requests without the header pass through
// anonymously; route-level authorization decides whether that is enough.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(PrincipalIDHeader)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		if _, err := strconv.ParseInt(header, 10, 64); err != nil {
			httputil.WriteBadRequest(w, "malformed principal header")
			return
		}

		ctx := observability.WithPrincipalID(r.Context(), header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
