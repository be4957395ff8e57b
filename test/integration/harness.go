// Package integration provides a reusable test harness for end-to-end
// testing of the Chancery BFF server. It starts a full HTTP server with a
// mock content backend, in-memory stores, and a test JWT issuer.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kingscribe/chancery/internal/builder"
	"github.com/kingscribe/chancery/internal/catalog"
	"github.com/kingscribe/chancery/internal/config"
	"github.com/kingscribe/chancery/internal/configstore"
	"github.com/kingscribe/chancery/internal/display"
	"github.com/kingscribe/chancery/internal/entity"
	"github.com/kingscribe/chancery/internal/observability"
	"github.com/kingscribe/chancery/internal/transport"
	"github.com/kingscribe/chancery/internal/wizard"
	"github.com/kingscribe/chancery/model"
)

// TestHarness encapsulates a fully wired BFF instance with a mock content
// backend for integration testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	// Internal components exposed for advanced test scenarios.
	Backend       *MockBackend
	FormStore     *configstore.MemoryFormStore
	DisplayStore  *configstore.MemoryDisplayStore
	ProgressStore *wizard.MemoryProgressStore
	Engine        *wizard.Engine

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	handlerTimeout   time.Duration
	backendTimeout   time.Duration
	retryAttempts    int
	breakerThreshold int
	breakerTimeout   time.Duration
	seedFixtures     bool
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithBackendTimeout sets the gateway's HTTP client timeout.
func WithBackendTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.backendTimeout = d
	}
}

// WithRetryAttempts sets the gateway's retry budget for idempotent calls.
func WithRetryAttempts(n int) HarnessOption {
	return func(c *harnessConfig) {
		c.retryAttempts = n
	}
}

// WithBreaker sets the circuit breaker failure threshold and open interval.
func WithBreaker(failureThreshold int, timeout time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.breakerThreshold = failureThreshold
		c.breakerTimeout = timeout
	}
}

// WithoutFixtures skips seeding the default Structure form and display
// configurations, for tests that build their own.
func WithoutFixtures() HarnessOption {
	return func(c *harnessConfig) {
		c.seedFixtures = false
	}
}

// NewTestHarness creates and starts a full BFF test instance. The server is
// automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout:   10 * time.Second,
		backendTimeout:   5 * time.Second,
		retryAttempts:    1,
		breakerThreshold: 5,
		breakerTimeout:   200 * time.Millisecond,
		seedFixtures:     true,
	}
	for _, opt := range opts {
		opt(hc)
	}

	logger := zap.NewNop()
	h := &TestHarness{
		t:       t,
		Backend: newMockBackend(t, KingdomRoutes()),
		issuer:  newTokenIssuer(t),
	}

	// Step 1: Build config pointing at the mock backend and test issuer.
	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h.cfg.Identity = config.IdentityConfig{
		Issuer:       h.issuer.Issuer(),
		Audience:     h.issuer.Audience(),
		JWKSURL:      h.issuer.JWKSURL(),
		JWKSCacheTTL: 1 * time.Hour,
		Algorithms:   []string{"RS256"},
	}
	h.cfg.Backend = config.BackendConfig{
		BaseURL:  h.Backend.URL(),
		SpecFile: filepath.Join(testdataDir(), "backend-openapi.yaml"),
		Timeout:  hc.backendTimeout,
		CircuitBreaker: config.CircuitBreakerConfig{
			FailureThreshold: hc.breakerThreshold,
			SuccessThreshold: 1,
			Timeout:          hc.breakerTimeout,
		},
		Retry: config.RetryConfig{
			MaxAttempts:    hc.retryAttempts,
			BackoffInitial: 1 * time.Millisecond,
			BackoffMax:     5 * time.Millisecond,
			IdempotentOnly: true,
		},
		Entities: map[string]config.EntityConfig{
			"Structure": {ResourcePath: "/api/structures"},
			"District":  {ResourcePath: "/api/districts"},
		},
	}
	h.cfg.Catalog = config.CatalogConfig{
		Directory:  filepath.Join(testdataDir(), "catalogs"),
		MaxResults: 20,
	}

	// Step 2: Gateway, registry, and metadata from the backend spec.
	gateway := entity.NewGateway(h.cfg.Backend, logger)
	registry := gateway.Registry()

	metadata, err := entity.NewOpenAPIMetadataProvider(h.cfg.Backend.SpecFile, h.cfg.Backend.Entities)
	if err != nil {
		t.Fatalf("load backend spec: %v", err)
	}

	// Step 3: Catalogs.
	catalogs, err := catalog.NewService(h.cfg.Catalog, logger)
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}

	// Step 4: In-memory stores, optionally seeded with default fixtures.
	h.FormStore = configstore.NewMemoryFormStore()
	h.DisplayStore = configstore.NewMemoryDisplayStore()
	h.ProgressStore = wizard.NewMemoryProgressStore()

	if hc.seedFixtures {
		if err := h.FormStore.Create(context.Background(), StructureFormFixture()); err != nil {
			t.Fatalf("seed form configuration: %v", err)
		}
		if err := h.DisplayStore.Create(context.Background(), StructureDisplayFixture()); err != nil {
			t.Fatalf("seed display configuration: %v", err)
		}
	}

	// Step 5: Domain services.
	h.Engine = wizard.NewEngine(h.FormStore, h.ProgressStore, registry, metadata, logger)
	renderer := display.NewRenderer(h.DisplayStore, registry, display.RecoveryHints{}, logger)
	hotEditor := display.NewHotEditor(registry, logger)
	forms := builder.NewFormService(h.FormStore, metadata, logger)
	displays := builder.NewDisplayService(h.DisplayStore, metadata, logger)

	// Step 6: Router with the full middleware chain. Metrics register on a
	// private registry so parallel harnesses do not collide.
	jwks := transport.NewJWKSClient(h.cfg.Identity.JWKSURL, h.cfg.Identity.JWKSCacheTTL, logger)
	metricsReg := prometheus.NewRegistry()
	metrics := observability.InitMetrics(metricsReg)

	router := transport.NewRouter(transport.Dependencies{
		Config:       h.cfg,
		Log:          logger,
		Authenticate: transport.JWTAuthenticator(h.cfg.Identity, jwks),
		Engine:       h.Engine,
		Renderer:     renderer,
		HotEditor:    hotEditor,
		Forms:        forms,
		Displays:     displays,
		Catalogs:     catalogs,
		Metrics:      metrics,
		Health:       observability.HandleHealth(),
		Ready: observability.HandleReady(observability.ReadinessChecks{
			BackendSpecLoaded: func() bool { return true },
			CatalogsLoaded:    func() bool { return len(catalogs.Catalogs()) > 0 },
		}),
		MetricsHandler: promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}),
	})

	// Step 7: Start the test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid JWT token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, nil)
}

// GETWithHeaders performs an authenticated GET request with additional headers.
func (h *TestHarness) GETWithHeaders(path, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, headers)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, nil)
}

// PUT performs an authenticated PUT request with a JSON body.
func (h *TestHarness) PUT(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("PUT", path, body, token, nil)
}

// PATCH performs an authenticated PATCH request with a JSON body.
func (h *TestHarness) PATCH(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("PATCH", path, body, token, nil)
}

// DELETE performs an authenticated DELETE request.
func (h *TestHarness) DELETE(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("DELETE", path, nil, token, nil)
}

func (h *TestHarness) doRequest(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	url := h.server.URL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// AssertErrorCode checks the response status and the error envelope code.
func (h *TestHarness) AssertErrorCode(t *testing.T, resp *http.Response, status int, code string) model.ErrorEnvelope {
	t.Helper()
	var envelope errorResponse
	h.AssertJSON(t, resp, status, &envelope)
	if envelope.Error.Code != code {
		t.Errorf("error code = %q, want %q (message: %s)", envelope.Error.Code, code, envelope.Error.Message)
	}
	return envelope.Error
}

// errorResponse matches the transport's error envelope wrapper.
type errorResponse struct {
	Error model.ErrorEnvelope `json:"error"`
}

// --- Default test claims ---

// BuilderClaims returns TestClaims for a configuration author.
func BuilderClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-builder",
		Email:     "builder@kingdoms.example.com",
		Roles:     []string{"config_admin"},
	}
}

// PlayerClaims returns TestClaims for a regular player filling forms.
func PlayerClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-player",
		Email:     "player@kingdoms.example.com",
		Roles:     []string{"player"},
	}
}

// --- Fixtures ---

// testdataDir returns the absolute path to the testdata directory.
func testdataDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata")
}

// StructureFormFixture returns the default two-step Structure wizard
// configuration seeded into the form store.
func StructureFormFixture() model.FormConfiguration {
	return model.FormConfiguration{
		ID:                "cfg-structure-default",
		EntityName:        "Structure",
		ConfigurationName: "Structure Wizard",
		IsDefault:         true,
		IsActive:          true,
		Steps: []model.FormStep{
			{
				ID:       "step-basics",
				StepName: "Basics",
				Title:    "Structure basics",
				Order:    0,
				Fields: []model.FormField{
					{ID: "f-name", FieldName: "name", Label: "Name", FieldType: model.FieldTypeString, IsRequired: true, Order: 0},
					{ID: "f-height", FieldName: "height", Label: "Height", FieldType: model.FieldTypeInteger, Order: 1},
				},
			},
			{
				ID:       "step-details",
				StepName: "Details",
				Title:    "Structure details",
				Order:    1,
				Fields: []model.FormField{
					{ID: "f-motto", FieldName: "motto", Label: "Motto", FieldType: model.FieldTypeString, Order: 0},
					{ID: "f-ruin", FieldName: "isRuin", Label: "Is a ruin", FieldType: model.FieldTypeBoolean, Order: 1},
				},
			},
		},
	}
}

// StructureDisplayFixture returns the default Structure display
// configuration seeded into the display store.
func StructureDisplayFixture() model.DisplayConfiguration {
	return model.DisplayConfiguration{
		ID:             "disp-structure-default",
		Name:           "Structure Details",
		EntityTypeName: "Structure",
		IsDefault:      true,
		Sections: []model.DisplaySection{
			{
				ID:          "sec-general",
				SectionGUID: "guid-sec-general",
				SectionName: "General",
				Fields: []model.DisplayField{
					{ID: "df-name", FieldGUID: "guid-name", FieldName: "name", Label: "Name", FieldType: "string", IsEditableInDisplay: true},
					{ID: "df-height", FieldGUID: "guid-height", FieldName: "height", Label: "Height", FieldType: "integer", IsEditableInDisplay: true},
					{ID: "df-ruin", FieldGUID: "guid-ruin", FieldName: "isRuin", Label: "Ruined", FieldType: "boolean"},
				},
			},
		},
	}
}

// StructureFixture returns a map representing a typical structure for mock
// backend responses.
func StructureFixture(id, name string, height float64) map[string]any {
	return map[string]any{
		"id":      id,
		"name":    name,
		"height":  height,
		"isRuin":  false,
		"builtAt": "2025-04-02T10:30:00Z",
	}
}

// StructureListFixture returns a paginated list response with the given items.
func StructureListFixture(items []map[string]any, total int) map[string]any {
	return map[string]any{
		"items":      items,
		"totalCount": total,
		"page":       1,
		"pageSize":   25,
	}
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
