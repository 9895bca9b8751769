package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal      *prometheus.CounterVec
	EscalationAttemptsTotal  *prometheus.CounterVec
	GrantMutationsTotal      *prometheus.CounterVec

	// Taxonomy metrics
	ValidationFailuresTotal *prometheus.CounterVec
	SchemaMutationsTotal    *prometheus.CounterVec

	// Descriptor cache metrics
	DescriptorCacheHitsTotal   prometheus.Counter
	DescriptorCacheMissesTotal prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	DBRetriesTotal      prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cityatlas_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cityatlas_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cityatlas_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"action", "decision"},
		),
		EscalationAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cityatlas_authz_escalation_attempts_total",
				Help: "Total number of rejected privilege escalation attempts",
			},
			[]string{"tenant"},
		),
		GrantMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cityatlas_authz_grant_mutations_total",
				Help: "Total number of grant create/update/revoke operations",
			},
			[]string{"operation", "status"},
		),
		ValidationFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cityatlas_taxonomy_validation_failures_total",
				Help: "Total number of assignment validation failures",
			},
			[]string{"kind"},
		),
		SchemaMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cityatlas_taxonomy_schema_mutations_total",
				Help: "Total number of taxonomy schema mutations",
			},
			[]string{"entity", "operation"},
		),
		DescriptorCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cityatlas_descriptor_cache_hits_total",
				Help: "Total number of rendering descriptor cache hits",
			},
		),
		DescriptorCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cityatlas_descriptor_cache_misses_total",
				Help: "Total number of rendering descriptor cache misses",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cityatlas_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cityatlas_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cityatlas_db_retries_total",
				Help: "Total number of retried database operations",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.EscalationAttemptsTotal,
		m.GrantMutationsTotal,
		m.ValidationFailuresTotal,
		m.SchemaMutationsTotal,
		m.DescriptorCacheHitsTotal,
		m.DescriptorCacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBRetriesTotal,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusRecorder captures the response status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
