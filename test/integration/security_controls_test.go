package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/kingscribe/chancery/model"
)

// TestSecurity_missingToken rejects unauthenticated access to every
// protected surface.
func TestSecurity_missingToken(t *testing.T) {
	h := NewTestHarness(t)

	paths := []string{
		"/ui/form-configurations",
		"/ui/display-configurations",
		"/ui/wizard",
		"/ui/display/Structure/42",
		"/ui/catalogs",
	}
	for _, path := range paths {
		resp := h.GET(path, "")
		h.AssertErrorCode(t, resp, http.StatusUnauthorized, model.ErrUnauthorized)
	}
	h.Backend.AssertNotCalled(t, "getStructure")
}

// TestSecurity_malformedToken.
func TestSecurity_malformedToken(t *testing.T) {
	h := NewTestHarness(t)

	resp := h.GET("/ui/catalogs", "not-a-jwt")
	h.AssertErrorCode(t, resp, http.StatusUnauthorized, model.ErrUnauthorized)
}

// TestSecurity_expiredToken.
func TestSecurity_expiredToken(t *testing.T) {
	h := NewTestHarness(t)

	token := h.GenerateExpiredToken(PlayerClaims())
	resp := h.GET("/ui/catalogs", token)
	h.AssertErrorCode(t, resp, http.StatusUnauthorized, model.ErrUnauthorized)
}

// TestSecurity_tamperedSignature.
func TestSecurity_tamperedSignature(t *testing.T) {
	h := NewTestHarness(t)

	token := h.GenerateToken(PlayerClaims())
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %s", token)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	resp := h.GET("/ui/catalogs", tampered)
	h.AssertErrorCode(t, resp, http.StatusUnauthorized, model.ErrUnauthorized)
}

// TestSecurity_wrongAudience rejects tokens minted for another API.
func TestSecurity_wrongAudience(t *testing.T) {
	h := NewTestHarness(t)

	claims := PlayerClaims()
	claims.Extra = map[string]any{"aud": "some-other-api"}
	resp := h.GET("/ui/catalogs", h.GenerateToken(claims))
	h.AssertErrorCode(t, resp, http.StatusUnauthorized, model.ErrUnauthorized)
}

// TestSecurity_wrongIssuer rejects tokens from a different issuer even
// when signed with the trusted key.
func TestSecurity_wrongIssuer(t *testing.T) {
	h := NewTestHarness(t)

	claims := PlayerClaims()
	claims.Extra = map[string]any{"iss": "https://rogue.example.com"}
	resp := h.GET("/ui/catalogs", h.GenerateToken(claims))
	h.AssertErrorCode(t, resp, http.StatusUnauthorized, model.ErrUnauthorized)
}

// TestSecurity_publicEndpointsBypassAuth.
func TestSecurity_publicEndpointsBypassAuth(t *testing.T) {
	h := NewTestHarness(t)

	for _, path := range []string{"/ui/health", "/ui/ready", "/metrics"} {
		resp := h.GET(path, "")
		h.AssertStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}
}

// TestSecurity_responseHeaders checks the hardening headers on an
// authenticated response.
func TestSecurity_responseHeaders(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	resp := h.GET("/ui/catalogs", token)
	h.AssertStatus(t, resp, http.StatusOK)
	defer resp.Body.Close()

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	}
	for header, value := range want {
		if got := resp.Header.Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}

// TestSecurity_correlationIDPropagates echoes a caller-supplied
// correlation id and forwards it to the backend.
func TestSecurity_correlationIDPropagates(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	h.Backend.OnOperation("getStructure").
		RespondWith(http.StatusOK, StructureFixture("42", "Old Mill", 12))

	resp := h.GETWithHeaders("/ui/display/Structure/42", token, map[string]string{
		"X-Correlation-Id": "corr-777",
	})
	h.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	if got := resp.Header.Get("X-Correlation-Id"); got != "corr-777" {
		t.Errorf("response X-Correlation-Id = %q, want corr-777", got)
	}
	req := h.Backend.LastRequest("getStructure")
	if got := req.Headers.Get("X-Correlation-Id"); got != "corr-777" {
		t.Errorf("backend X-Correlation-Id = %q, want corr-777", got)
	}
}

// TestSecurity_correlationIDGenerated assigns one when the caller sends
// none.
func TestSecurity_correlationIDGenerated(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(PlayerClaims())

	resp := h.GET("/ui/catalogs", token)
	h.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	if resp.Header.Get("X-Correlation-Id") == "" {
		t.Error("no correlation id generated")
	}
}

// TestSecurity_corsPreflight.
func TestSecurity_corsPreflight(t *testing.T) {
	h := NewTestHarness(t)

	req, err := http.NewRequest(http.MethodOptions, h.BaseURL()+"/ui/catalogs", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

// TestSecurity_corsDisallowedOrigin gets no CORS grant.
func TestSecurity_corsDisallowedOrigin(t *testing.T) {
	h := NewTestHarness(t)

	req, err := http.NewRequest(http.MethodOptions, h.BaseURL()+"/ui/catalogs", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin granted %q", got)
	}
}
