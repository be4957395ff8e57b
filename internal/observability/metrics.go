package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the admin BFF.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Wizard session metrics
	WizardStartsTotal         *prometheus.CounterVec
	WizardAdvancesTotal       *prometheus.CounterVec
	WizardCompletionsTotal    *prometheus.CounterVec
	WizardActiveSessions      *prometheus.GaugeVec
	WizardValidationFailures  prometheus.Counter

	// Backend gateway metrics
	BackendRequestsTotal       *prometheus.CounterVec
	BackendRequestDuration     *prometheus.HistogramVec
	BackendCircuitBreakerState prometheus.Gauge
	BackendRetriesTotal        *prometheus.CounterVec

	// Configuration builder metrics
	ConfigurationSavesTotal *prometheus.CounterVec
	HotEditsTotal           *prometheus.CounterVec

	// Catalog metrics
	CatalogSearchesTotal  *prometheus.CounterVec
	CatalogSearchDuration prometheus.Histogram
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chancery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chancery_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chancery_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Wizard sessions
		WizardStartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_wizard_starts_total",
			Help: "Total number of wizard sessions started.",
		}, []string{"entity_type", "mode"}),
		WizardAdvancesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_wizard_advances_total",
			Help: "Total number of wizard step transitions.",
		}, []string{"entity_type", "direction"}),
		WizardCompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_wizard_completions_total",
			Help: "Total number of wizard sessions reaching a terminal status.",
		}, []string{"entity_type", "final_status"}),
		WizardActiveSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chancery_wizard_active_sessions",
			Help: "Number of wizard sessions started and not yet terminal.",
		}, []string{"entity_type"}),
		WizardValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chancery_wizard_validation_failures_total",
			Help: "Total number of forward navigations blocked by validation.",
		}),

		// Backend gateway
		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_backend_requests_total",
			Help: "Total number of content backend requests.",
		}, []string{"entity_type", "operation", "status"}),
		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chancery_backend_request_duration_seconds",
			Help:    "Content backend request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"entity_type"}),
		BackendCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chancery_backend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		BackendRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_backend_retries_total",
			Help: "Total number of content backend request retries.",
		}, []string{"entity_type"}),

		// Configuration builder
		ConfigurationSavesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_configuration_saves_total",
			Help: "Total number of configuration save attempts.",
		}, []string{"kind", "status"}),
		HotEditsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_hot_edits_total",
			Help: "Total number of display hot-edit commits.",
		}, []string{"entity_type", "status"}),

		// Catalogs
		CatalogSearchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chancery_catalog_searches_total",
			Help: "Total number of catalog search queries.",
		}, []string{"catalog"}),
		CatalogSearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chancery_catalog_search_duration_seconds",
			Help:    "Catalog search duration in seconds.",
			Buckets: backendDurationBuckets,
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Wizard
		m.WizardStartsTotal,
		m.WizardAdvancesTotal,
		m.WizardCompletionsTotal,
		m.WizardActiveSessions,
		m.WizardValidationFailures,
		// Backend
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.BackendCircuitBreakerState,
		m.BackendRetriesTotal,
		// Builder
		m.ConfigurationSavesTotal,
		m.HotEditsTotal,
		// Catalogs
		m.CatalogSearchesTotal,
		m.CatalogSearchDuration,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordWizardStart records a wizard session start. Mode is fresh,
// edit, or resume.
func (m *Metrics) RecordWizardStart(entityType, mode string) {
	m.WizardStartsTotal.WithLabelValues(entityType, mode).Inc()
	m.WizardActiveSessions.WithLabelValues(entityType).Inc()
}

// RecordWizardAdvance records a step transition. Direction is next or
// previous.
func (m *Metrics) RecordWizardAdvance(entityType, direction string) {
	m.WizardAdvancesTotal.WithLabelValues(entityType, direction).Inc()
}

// RecordWizardCompletion records a session reaching a terminal status.
func (m *Metrics) RecordWizardCompletion(entityType, finalStatus string) {
	m.WizardCompletionsTotal.WithLabelValues(entityType, finalStatus).Inc()
	m.WizardActiveSessions.WithLabelValues(entityType).Dec()
}

// RecordWizardValidationFailure records a blocked forward navigation.
func (m *Metrics) RecordWizardValidationFailure() {
	m.WizardValidationFailures.Inc()
}

// RecordBackendRequest records a content backend request.
func (m *Metrics) RecordBackendRequest(entityType, operation string, status int, duration time.Duration) {
	m.BackendRequestsTotal.WithLabelValues(entityType, operation, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(entityType).Observe(duration.Seconds())
}

// SetBackendCircuitBreakerState sets the circuit breaker state gauge.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetBackendCircuitBreakerState(state float64) {
	m.BackendCircuitBreakerState.Set(state)
}

// RecordBackendRetry records a backend request retry.
func (m *Metrics) RecordBackendRetry(entityType string) {
	m.BackendRetriesTotal.WithLabelValues(entityType).Inc()
}

// RecordConfigurationSave records a configuration save attempt. Kind is
// form or display.
func (m *Metrics) RecordConfigurationSave(kind, status string) {
	m.ConfigurationSavesTotal.WithLabelValues(kind, status).Inc()
}

// RecordHotEdit records a display hot-edit commit.
func (m *Metrics) RecordHotEdit(entityType, status string) {
	m.HotEditsTotal.WithLabelValues(entityType, status).Inc()
}

// RecordCatalogSearch records a catalog search query.
func (m *Metrics) RecordCatalogSearch(catalog string, duration time.Duration) {
	m.CatalogSearchesTotal.WithLabelValues(catalog).Inc()
	m.CatalogSearchDuration.Observe(duration.Seconds())
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
