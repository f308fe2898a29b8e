package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts outbound backend requests by method, route and status.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trazio_api_requests_total",
		Help: "Total outbound requests to the TRAZIO backend",
	}, []string{"method", "route", "status"})

	// APILatency records outbound request latency.
	APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trazio_api_request_duration_seconds",
		Help:    "Outbound backend request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// QueryCacheEvents counts query cache hits, misses, fetches and cancellations.
	QueryCacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trazio_query_cache_events_total",
		Help: "Query cache events by type",
	}, []string{"event"})

	// MutationOutcomes counts optimistic mutations by name and outcome.
	MutationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trazio_mutation_outcomes_total",
		Help: "Optimistic mutations by outcome (committed, rolled_back)",
	}, []string{"mutation", "outcome"})

	// UploadRejections counts files refused before reaching the network.
	UploadRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trazio_upload_rejections_total",
		Help: "Uploads rejected client-side by kind and reason",
	}, []string{"kind", "reason"})

	// ForcedLogouts counts sessions ended by a 401 from the backend.
	ForcedLogouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trazio_forced_logouts_total",
		Help: "Sessions logged out because the backend answered 401",
	})

	// ActiveSessions is the number of browser sessions held in memory.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trazio_active_sessions",
		Help: "Browser sessions currently held in memory",
	})

	// RedisErrors counts redis failures by operation.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trazio_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)

// TrackAPICall returns a function that records the call when invoked (e.g. defer).
func TrackAPICall(method, route string) func(status string) {
	start := time.Now()
	return func(status string) {
		APILatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		APIRequests.WithLabelValues(method, route, status).Inc()
	}
}
