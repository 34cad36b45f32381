package metrics

import "github.com/prometheus/client_golang/prometheus"

var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"endpoint", "status", "method"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "method"},
)

var RateLimitRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "http_rate_limit_rejections_total",
		Help: "Total number of HTTP requests rejected due to rate limiting",
	},
)

var ObfuscationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "obfuscations_total",
		Help: "Total number of obfuscation operations by outcome and quota source",
	},
	[]string{"outcome", "source"},
)

var EngineCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "engine_call_duration_seconds",
		Help:    "Duration of obfuscation engine calls in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"outcome"},
)

func Register() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(RateLimitRejectionsTotal)
	prometheus.MustRegister(ObfuscationsTotal)
	prometheus.MustRegister(EngineCallDuration)
}
