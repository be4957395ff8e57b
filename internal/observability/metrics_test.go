package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)
	return m, reg
}

func TestInitMetrics_registersAllMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)
	if m == nil {
		t.Fatal("InitMetrics returned nil")
	}

	expected := []string{
		"chancery_http_requests_total",
		"chancery_http_request_duration_seconds",
		"chancery_http_request_size_bytes",
		"chancery_http_response_size_bytes",
		"chancery_wizard_starts_total",
		"chancery_wizard_advances_total",
		"chancery_wizard_completions_total",
		"chancery_wizard_active_sessions",
		"chancery_wizard_validation_failures_total",
		"chancery_backend_requests_total",
		"chancery_backend_request_duration_seconds",
		"chancery_backend_circuit_breaker_state",
		"chancery_backend_retries_total",
		"chancery_configuration_saves_total",
		"chancery_hot_edits_total",
		"chancery_catalog_searches_total",
		"chancery_catalog_search_duration_seconds",
	}

	// Record a value for each metric so they appear in Gather.
	m.RecordHTTPRequest("GET", "/test", 200, time.Millisecond, 0, 100)
	m.RecordWizardStart("Structure", "fresh")
	m.RecordWizardAdvance("Structure", "next")
	m.RecordWizardCompletion("Structure", "Completed")
	m.RecordWizardValidationFailure()
	m.RecordBackendRequest("Structure", "create", 201, time.Millisecond)
	m.SetBackendCircuitBreakerState(0)
	m.RecordBackendRetry("Structure")
	m.RecordConfigurationSave("form", "success")
	m.RecordHotEdit("Structure", "success")
	m.RecordCatalogSearch("materials", time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/ui/display/{entityType}/{entityId}", 200, 50*time.Millisecond, 0, 1024)
	m.RecordHTTPRequest("GET", "/ui/display/{entityType}/{entityId}", 200, 100*time.Millisecond, 0, 2048)
	m.RecordHTTPRequest("POST", "/ui/wizard", 500, 200*time.Millisecond, 512, 256)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ui/display/{entityType}/{entityId}", "200"))
	if val != 2 {
		t.Errorf("GET requests = %v, want 2", val)
	}
	val = testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/ui/wizard", "500"))
	if val != 1 {
		t.Errorf("POST requests = %v, want 1", val)
	}
}

func TestRecordWizardLifecycle(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordWizardStart("Structure", "fresh")
	active := testutil.ToFloat64(m.WizardActiveSessions.WithLabelValues("Structure"))
	if active != 1 {
		t.Errorf("active sessions = %v, want 1", active)
	}

	m.RecordWizardAdvance("Structure", "next")
	advances := testutil.ToFloat64(m.WizardAdvancesTotal.WithLabelValues("Structure", "next"))
	if advances != 1 {
		t.Errorf("advances = %v, want 1", advances)
	}

	m.RecordWizardCompletion("Structure", "Completed")
	active = testutil.ToFloat64(m.WizardActiveSessions.WithLabelValues("Structure"))
	if active != 0 {
		t.Errorf("active sessions after completion = %v, want 0", active)
	}

	completions := testutil.ToFloat64(m.WizardCompletionsTotal.WithLabelValues("Structure", "Completed"))
	if completions != 1 {
		t.Errorf("completions = %v, want 1", completions)
	}
}

func TestRecordWizardValidationFailure(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordWizardValidationFailure()
	m.RecordWizardValidationFailure()

	val := testutil.ToFloat64(m.WizardValidationFailures)
	if val != 2 {
		t.Errorf("validation failures = %v, want 2", val)
	}
}

func TestRecordBackendRequest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordBackendRequest("Structure", "create", 201, 100*time.Millisecond)

	val := testutil.ToFloat64(m.BackendRequestsTotal.WithLabelValues("Structure", "create", "201"))
	if val != 1 {
		t.Errorf("backend requests = %v, want 1", val)
	}
}

func TestSetBackendCircuitBreakerState(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.SetBackendCircuitBreakerState(0)
	if val := testutil.ToFloat64(m.BackendCircuitBreakerState); val != 0 {
		t.Errorf("circuit breaker state = %v, want 0 (closed)", val)
	}

	m.SetBackendCircuitBreakerState(2)
	if val := testutil.ToFloat64(m.BackendCircuitBreakerState); val != 2 {
		t.Errorf("circuit breaker state = %v, want 2 (open)", val)
	}
}

func TestRecordBackendRetry(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordBackendRetry("Structure")
	m.RecordBackendRetry("Structure")
	val := testutil.ToFloat64(m.BackendRetriesTotal.WithLabelValues("Structure"))
	if val != 2 {
		t.Errorf("retries = %v, want 2", val)
	}
}

func TestRecordConfigurationSave(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordConfigurationSave("form", "success")
	m.RecordConfigurationSave("form", "default_exists")
	m.RecordConfigurationSave("display", "success")

	success := testutil.ToFloat64(m.ConfigurationSavesTotal.WithLabelValues("form", "success"))
	if success != 1 {
		t.Errorf("form saves = %v, want 1", success)
	}
	blocked := testutil.ToFloat64(m.ConfigurationSavesTotal.WithLabelValues("form", "default_exists"))
	if blocked != 1 {
		t.Errorf("blocked saves = %v, want 1", blocked)
	}
}

func TestRecordHotEdit(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordHotEdit("Structure", "success")
	m.RecordHotEdit("Structure", "invalid")

	val := testutil.ToFloat64(m.HotEditsTotal.WithLabelValues("Structure", "success"))
	if val != 1 {
		t.Errorf("hot edits = %v, want 1", val)
	}
}

func TestRecordCatalogSearch(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordCatalogSearch("materials", 5*time.Millisecond)

	val := testutil.ToFloat64(m.CatalogSearchesTotal.WithLabelValues("materials"))
	if val != 1 {
		t.Errorf("catalog searches = %v, want 1", val)
	}
	if count := testutil.CollectAndCount(m.CatalogSearchDuration); count == 0 {
		t.Error("expected catalog search duration histogram to have observations")
	}
}

func TestMetricsMiddleware_recordsRequestMetrics(t *testing.T) {
	m, _ := newTestMetrics(t)

	// Build a chi router so route patterns are captured.
	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/ui/display/{entityType}/{entityId}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/ui/display/Structure/42", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// Verify metrics were recorded with the route pattern, not the actual path.
	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ui/display/{entityType}/{entityId}", "200"))
	if val != 1 {
		t.Errorf("requests total = %v, want 1", val)
	}
}

func TestMetricsMiddleware_capturesResponseSize(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("healthy"))
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	// Response size should have been recorded.
	count := testutil.CollectAndCount(m.HTTPResponseSizeBytes)
	if count == 0 {
		t.Error("expected response size histogram to have observations")
	}
}

func TestMetricsMiddleware_capturesStatusCode(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Post("/ui/wizard/{progressId}/next", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/ui/wizard/p1/next", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/ui/wizard/{progressId}/next", "400"))
	if val != 1 {
		t.Errorf("400 requests = %v, want 1", val)
	}
}

func TestMetricsMiddleware_fallsBackToPath(t *testing.T) {
	m, _ := newTestMetrics(t)

	// Use middleware directly without chi router.
	handler := m.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/raw/path", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Without chi, should fall back to raw path.
	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/raw/path", "200"))
	if val != 1 {
		t.Errorf("raw path requests = %v, want 1", val)
	}
}

func TestHandler_servesMetrics(t *testing.T) {
	handler := Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	// Prometheus handler should return at least go runtime metrics.
	if !strings.Contains(body, "go_") {
		t.Error("metrics response should contain go runtime metrics")
	}
}

func TestHistogramBuckets(t *testing.T) {
	// Verify bucket configurations are correct.
	if len(httpDurationBuckets) != 11 {
		t.Errorf("httpDurationBuckets length = %d, want 11", len(httpDurationBuckets))
	}
	if len(backendDurationBuckets) != 9 {
		t.Errorf("backendDurationBuckets length = %d, want 9", len(backendDurationBuckets))
	}
	if len(bodySizeBuckets) != 5 {
		t.Errorf("bodySizeBuckets length = %d, want 5", len(bodySizeBuckets))
	}

	// Verify buckets are sorted ascending.
	for i := 1; i < len(httpDurationBuckets); i++ {
		if httpDurationBuckets[i] <= httpDurationBuckets[i-1] {
			t.Errorf("httpDurationBuckets not sorted at index %d", i)
		}
	}
}
