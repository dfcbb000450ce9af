package config

import (
	"testing"
	"time"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	t.Setenv("CACP_ENVIRONMENT", "")
	t.Setenv("CACP_OPA_TIMEOUT", "")
	t.Setenv("CACP_PG_DSN", "")

	cfg := Load()
	if cfg.Environment != "dev" {
		t.Errorf("expected default environment dev, got %q", cfg.Environment)
	}
	if cfg.OPATimeout != 5*time.Second {
		t.Errorf("expected default OPA timeout 5s, got %v", cfg.OPATimeout)
	}
	if cfg.PostgresDSN == "" {
		t.Error("expected a default postgres DSN")
	}
}

func TestLoad_ReadsOverrides(t *testing.T) {
	t.Setenv("CACP_ENVIRONMENT", "prod")
	t.Setenv("CACP_HMAC_SECRET", "topsecret")
	t.Setenv("CACP_OPA_TIMEOUT", "2")

	cfg := Load()
	if cfg.Environment != "prod" {
		t.Errorf("expected prod, got %q", cfg.Environment)
	}
	if cfg.HMACSecret != "topsecret" {
		t.Errorf("expected hmac secret override, got %q", cfg.HMACSecret)
	}
	if cfg.OPATimeout != 2*time.Second {
		t.Errorf("expected 2s OPA timeout, got %v", cfg.OPATimeout)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("CACP_OPA_TIMEOUT", "not-a-number")
	cfg := Load()
	if cfg.OPATimeout != 5*time.Second {
		t.Errorf("expected fallback to default on invalid duration, got %v", cfg.OPATimeout)
	}
}

func TestLoad_RailDefaultsMatchSpec(t *testing.T) {
	t.Setenv("CACP_QUIET_HOURS_START", "")
	t.Setenv("CACP_MAX_RETRIES", "")

	cfg := Load()
	if cfg.QuietHoursStart != 21 || cfg.QuietHoursEnd != 8 {
		t.Errorf("expected default quiet hours [21,8), got [%d,%d)", cfg.QuietHoursStart, cfg.QuietHoursEnd)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.MaxRetries)
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("CACP_MAX_RETRIES", "not-a-number")
	cfg := Load()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected fallback to default on invalid int, got %d", cfg.MaxRetries)
	}
}
