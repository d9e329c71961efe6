package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Aggregation
	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cozy_recompute_duration_seconds",
			Help:    "Duration of place aggregate recomputation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cozy_recompute_total",
			Help: "Total number of place aggregate recomputations by outcome",
		},
		[]string{"outcome"}, // "ok", "retried", "failed", "not_found"
	)

	RecomputeRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cozy_recompute_retries_total",
			Help: "Total number of retried recompute attempts after a transient store error",
		},
	)

	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cozy_recompute_breaker_state",
			Help: "Aggregation circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Domain
	RatingMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cozy_rating_mutations_total",
			Help: "Total number of committed rating mutations",
		},
		[]string{"op"}, // "create", "update", "delete"
	)

	ReportMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cozy_report_mutations_total",
			Help: "Total number of report additions and removals",
		},
		[]string{"op"},
	)

	PlacesArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cozy_places_archived_total",
			Help: "Total number of places archived for exceeding the report threshold",
		},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"method"},
	)
)

// RecordAPIRequest records one finished request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func RecordRecompute(outcome string, duration time.Duration) {
	RecomputeTotal.WithLabelValues(outcome).Inc()
	RecomputeDuration.Observe(duration.Seconds())
}
