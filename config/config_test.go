package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.SyncPollInterval != 300*time.Second {
		t.Errorf("SyncPollInterval = %v, want 300s", cfg.SyncPollInterval)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 defaults", cfg.AllowedOrigins)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("SYNC_POLL_INTERVAL_SEC", "60")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.SyncPollInterval != 60*time.Second {
		t.Errorf("SyncPollInterval = %v, want 60s", cfg.SyncPollInterval)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://a.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if !cfg.IsProduction() || cfg.IsDevelopment() {
		t.Error("expected IsProduction()=true, IsDevelopment()=false")
	}
}

func TestLoadReadsJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "top-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWTSecret != "top-secret" {
		t.Errorf("JWTSecret = %q, want top-secret", cfg.JWTSecret)
	}
}

func TestGetEnvIntFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("JOB_REAP_INTERVAL_SEC", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JobReapInterval != 3600*time.Second {
		t.Errorf("JobReapInterval = %v, want default 3600s when env value is invalid", cfg.JobReapInterval)
	}
}

func TestIsDevelopmentDefault(t *testing.T) {
	cfg := &Config{Environment: "development"}
	if !cfg.IsDevelopment() {
		t.Error("expected IsDevelopment() = true")
	}
	if cfg.IsProduction() {
		t.Error("expected IsProduction() = false")
	}
}
