package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Identity.Issuer != "https://auth.example.com" {
		t.Errorf("Identity.Issuer = %q", cfg.Identity.Issuer)
	}
	if cfg.Identity.JWKSURL != "https://auth.example.com/.well-known/jwks.json" {
		t.Errorf("Identity.JWKSURL = %q", cfg.Identity.JWKSURL)
	}
	if cfg.Identity.Audience != "chancery-admin" {
		t.Errorf("Identity.Audience = %q", cfg.Identity.Audience)
	}
	if len(cfg.Identity.Algorithms) != 2 {
		t.Errorf("Identity.Algorithms = %v, want 2 entries", cfg.Identity.Algorithms)
	}

	if cfg.Backend.BaseURL != "https://kingdoms.internal" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 10*time.Second {
		t.Errorf("Backend.Timeout = %v, want 10s", cfg.Backend.Timeout)
	}
	if cfg.Backend.CircuitBreaker.FailureThreshold != 5 {
		t.Errorf("Backend.CircuitBreaker.FailureThreshold = %d, want 5", cfg.Backend.CircuitBreaker.FailureThreshold)
	}

	town, ok := cfg.Backend.Entities["Town"]
	if !ok {
		t.Fatal("Backend.Entities[Town] not found")
	}
	if town.ResourcePath != "/api/towns" {
		t.Errorf("Town.ResourcePath = %q", town.ResourcePath)
	}

	if cfg.Storage.Driver != "postgres" {
		t.Errorf("Storage.Driver = %q, want postgres", cfg.Storage.Driver)
	}
	if cfg.Catalog.Directory != "/data/catalogs" {
		t.Errorf("Catalog.Directory = %q", cfg.Catalog.Directory)
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_missing_identity(t *testing.T) {
	_, err := Load("testdata/missing_identity.yaml")
	if err == nil {
		t.Fatal("Load() with missing identity should return error")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("default Storage.Driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Backend.Retry.MaxAttempts != 3 {
		t.Errorf("default Backend.Retry.MaxAttempts = %d, want 3", cfg.Backend.Retry.MaxAttempts)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHANCERY_SERVER_PORT", "3000")
	t.Setenv("CHANCERY_IDENTITY_ISSUER", "https://env-issuer.com")
	t.Setenv("CHANCERY_IDENTITY_JWKS_URL", "https://env-issuer.com/.well-known/jwks.json")
	t.Setenv("CHANCERY_IDENTITY_AUDIENCE", "env-audience")
	t.Setenv("CHANCERY_OBSERVABILITY_LOG_LEVEL", "error")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000 (env override)", cfg.Server.Port)
	}
	if cfg.Identity.Issuer != "https://env-issuer.com" {
		t.Errorf("Identity.Issuer = %q, want env override", cfg.Identity.Issuer)
	}
	if cfg.Identity.Audience != "env-audience" {
		t.Errorf("Identity.Audience = %q, want env override", cfg.Identity.Audience)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (env override)", cfg.Observability.LogLevel)
	}
}

func TestValidate_invalid_port(t *testing.T) {
	cfg := Defaults()
	cfg.Identity.Issuer = "https://auth.example.com"
	cfg.Identity.JWKSURL = "https://auth.example.com/.well-known/jwks.json"
	cfg.Identity.Audience = "chancery-admin"
	cfg.Backend.BaseURL = "https://kingdoms.internal"
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() with port 0 should return error")
	}
}

func TestValidate_unknown_storage_driver(t *testing.T) {
	cfg := Defaults()
	cfg.Identity.Issuer = "https://auth.example.com"
	cfg.Identity.JWKSURL = "https://auth.example.com/.well-known/jwks.json"
	cfg.Identity.Audience = "chancery-admin"
	cfg.Backend.BaseURL = "https://kingdoms.internal"
	cfg.Storage.Driver = "sqlite"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() with unknown storage driver should return error")
	}
}

func TestLoad_env_priority_over_file(t *testing.T) {
	// File sets port 9090, env sets 5555; env wins.
	t.Setenv("CHANCERY_SERVER_PORT", "5555")
	// Ensure identity fields are set so validation passes
	_ = os.Setenv("CHANCERY_IDENTITY_ISSUER", "")
	_ = os.Setenv("CHANCERY_IDENTITY_JWKS_URL", "")
	_ = os.Setenv("CHANCERY_IDENTITY_AUDIENCE", "")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 5555 {
		t.Errorf("Server.Port = %d, want 5555 (env override beats file)", cfg.Server.Port)
	}
}
