package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/script-licensing-service/internal/httputil"
)

// RequestID attaches a correlation ID to the request context and the
// X-Request-ID response header. An inbound X-Request-ID is honored so
// callers can correlate across services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := httputil.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
