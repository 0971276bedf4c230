package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Event metrics
	EventsTotal          *prometheus.CounterVec
	EventDurationSeconds *prometheus.HistogramVec

	// Provider metrics (weather, price, ai)
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderDurationSeconds *prometheus.HistogramVec
	AIFallbackTotal         *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Flood guard metrics
	FloodRejectedTotal prometheus.Counter
	FloodBansTotal     prometheus.Counter

	// Rate limiter metrics
	RateLimiterWaitDuration *prometheus.HistogramVec
	RateLimiterDropped      *prometheus.CounterVec
	RateLimiterUsers        *prometheus.GaugeVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec

	// Session metrics
	ActiveSessions prometheus.Gauge

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	f := promauto.With(registry)
	m := &Metrics{
		EventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiarash_events_total",
				Help: "Total number of inbound events by kind and status",
			},
			[]string{"kind", "status"}, // kind: text, callback, command, join; status: success, error, ignored, rate_limited
		),

		EventDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kiarash_event_duration_seconds",
				Help:    "Event handling duration in seconds by kind",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		),

		ProviderRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiarash_provider_requests_total",
				Help: "Total number of collaborator requests by provider and status",
			},
			[]string{"provider", "status"}, // status: success, error, timeout, not_found
		),

		ProviderDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kiarash_provider_duration_seconds",
				Help:    "Collaborator request duration in seconds by provider",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"provider"}, // provider: weather, price, ai
		),

		AIFallbackTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiarash_ai_fallback_total",
				Help: "Total number of AI requests that switched to the fallback provider",
			},
			[]string{"from", "to"},
		),

		CacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiarash_cache_hits_total",
				Help: "Total number of cache hits by module",
			},
			[]string{"module"},
		),

		CacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiarash_cache_misses_total",
				Help: "Total number of cache misses by module",
			},
			[]string{"module"},
		),

		FloodRejectedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "kiarash_flood_rejected_total",
				Help: "Total number of free-text messages rejected by the flood guard",
			},
		),

		FloodBansTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "kiarash_flood_bans_total",
				Help: "Total number of flood bans installed",
			},
		),

		RateLimiterWaitDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kiarash_rate_limiter_wait_duration_seconds",
				Help:    "Time spent waiting for rate limiter token by limiter type",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"limiter_type"}, // limiter_type: send, upstream
		),

		RateLimiterDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiarash_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: ai
		),

		RateLimiterUsers: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kiarash_rate_limiter_users",
				Help: "Number of users tracked by a keyed rate limiter",
			},
			[]string{"limiter_type"},
		),

		SingleflightDedupTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiarash_singleflight_dedup_total",
				Help: "Total number of deduplicated requests (requests that waited instead of executing)",
			},
			[]string{"module"}, // module: weather, price
		),

		ActiveSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "kiarash_sessions",
				Help: "Number of user sessions held in memory",
			},
		),

		HTTPErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kiarash_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: timeout, status_5xx, decode
		),
	}

	return m
}

// RecordEvent records one handled inbound event.
func (m *Metrics) RecordEvent(kind, status string, duration float64) {
	m.EventsTotal.WithLabelValues(kind, status).Inc()
	m.EventDurationSeconds.WithLabelValues(kind).Observe(duration)
}

// RecordProviderRequest records a collaborator request with status
func (m *Metrics) RecordProviderRequest(provider, status string, duration float64) {
	m.ProviderRequestsTotal.WithLabelValues(provider, status).Inc()
	m.ProviderDurationSeconds.WithLabelValues(provider).Observe(duration)
}

// RecordAIFallback records a switch from one AI provider to another.
func (m *Metrics) RecordAIFallback(from, to string) {
	m.AIFallbackTotal.WithLabelValues(from, to).Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(module string) {
	m.CacheHitsTotal.WithLabelValues(module).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(module string) {
	m.CacheMissesTotal.WithLabelValues(module).Inc()
}

// RecordFloodReject records a message rejected by the flood guard.
func (m *Metrics) RecordFloodReject() {
	m.FloodRejectedTotal.Inc()
}

// RecordFloodBan records a newly installed flood ban.
func (m *Metrics) RecordFloodBan() {
	m.FloodBansTotal.Inc()
}

// RecordRateLimiterWait records time spent waiting for rate limiter
func (m *Metrics) RecordRateLimiterWait(limiterType string, duration float64) {
	m.RateLimiterWaitDuration.WithLabelValues(limiterType).Observe(duration)
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterUsers sets the number of users tracked by a keyed limiter.
func (m *Metrics) SetRateLimiterUsers(limiterType string, count int) {
	m.RateLimiterUsers.WithLabelValues(limiterType).Set(float64(count))
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(module string) {
	m.SingleflightDedupTotal.WithLabelValues(module).Inc()
}

// SetActiveSessions sets the number of in-memory sessions.
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}
