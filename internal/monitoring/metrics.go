package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"server", "method", "path", "status_class"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gcligateway_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"server", "method", "path", "status_class"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gcligateway_http_inflight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	CredentialRotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_credential_rotations_total",
			Help: "Total number of credential rotations",
		},
		[]string{"credential"},
	)

	CredentialErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_credential_errors_total",
			Help: "Total number of credential errors",
		},
		[]string{"credential", "error_code"},
	)

	CredentialRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_credential_refreshes_total",
			Help: "Total number of credential token refreshes",
		},
		[]string{"credential", "status"},
	)

	// CredentialPoolState tracks live pool composition per sharing tier and model group.
	CredentialPoolState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gcligateway_credential_pool_state",
			Help: "Current number of credentials by sharing policy and cooldown state",
		},
		[]string{"sharing_policy", "state"}, // state: available|cooling_down|disabled
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_upstream_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"provider", "status_class"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gcligateway_upstream_request_duration_seconds",
			Help:    "Upstream API request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider"},
	)

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_upstream_errors_total",
			Help: "Total number of upstream errors by reason",
		},
		[]string{"provider", "reason"},
	)

	UpstreamRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_upstream_retry_attempts_total",
			Help: "Total number of upstream retry attempts",
		},
		[]string{"provider", "outcome"},
	)

	UpstreamModelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_upstream_model_requests_total",
			Help: "Total number of upstream requests by model",
		},
		[]string{"provider", "model", "status_class"},
	)

	SSELinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_sse_lines_total",
			Help: "Total number of SSE lines sent",
		},
		[]string{"server", "path"},
	)

	SSEDisconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_sse_disconnects_total",
			Help: "Total number of SSE disconnects by reason",
		},
		[]string{"server", "path", "reason"},
	)

	ModelFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_model_fallbacks_total",
			Help: "Total number of model fallback hits",
		},
		[]string{"server", "path", "from_model", "to_model"},
	)

	ThinkingRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_thinking_removed_total",
			Help: "Total number of thinking config removals",
		},
		[]string{"server", "path", "model"},
	)

	RateLimitKeysGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gcligateway_ratelimit_keys",
			Help: "Current number of per-key rate limiters",
		},
	)

	RateLimitSweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gcligateway_ratelimit_sweeps_total",
			Help: "Total number of rate limiter TTL cache sweeps",
		},
	)

	ActiveCredentials = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gcligateway_active_credentials",
			Help: "Number of active credentials",
		},
	)

	DisabledCredentials = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gcligateway_disabled_credentials",
			Help: "Number of disabled credentials",
		},
	)

	TokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_tokens_used_total",
			Help: "Total number of tokens used",
		},
		[]string{"model", "type"}, // type: prompt, completion, total
	)

	// QuotaRejectionsTotal counts requests rejected by the quota guard, by class and reason.
	QuotaRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcligateway_quota_rejections_total",
			Help: "Total number of requests rejected by the quota guard",
		},
		[]string{"model_class", "reason"}, // reason: class_quota|daily_quota|tier3_forbidden
	)

	// QuotaRemaining reports the last-computed remaining quota per user/class pair observed.
	QuotaRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gcligateway_quota_remaining",
			Help: "Remaining quota for the most recently evaluated request, by model class",
		},
		[]string{"model_class"},
	)
)

// SetRateLimitKeyGauge reports the current number of live per-key rate limiters.
func SetRateLimitKeyGauge(n int) {
	RateLimitKeysGauge.Set(float64(n))
}

// RecordRateLimitSweep records one TTL sweep of the per-key rate limiter cache.
func RecordRateLimitSweep() {
	RateLimitSweepsTotal.Inc()
}
