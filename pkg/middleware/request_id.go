package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cityatlas/cityatlas/pkg/observability"
)

// RequestIDHeader carries the request ID on responses and may supply one
// on requests from trusted upstream proxies.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request a UUID (or adopts the one supplied by
// the upstream proxy) and exposes it on the context and response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := observability.WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
