package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/script-licensing-service/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// Metrics records request counts and latencies per route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = r.URL.Path
		}

		metrics.HTTPRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(rec.status), r.Method).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(endpoint, r.Method).Observe(time.Since(start).Seconds())
		if rec.status == http.StatusTooManyRequests {
			metrics.RateLimitRejectionsTotal.Inc()
		}
	})
}
