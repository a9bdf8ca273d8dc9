package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Port:            "8000",
		Env:             "development",
		EHRBaseURL:      "https://ehr.example.com/fhir",
		HTTPTimeout:     30,
		CookieSecure:    true,
		AccessTokenTTL:  3600,
		RefreshTokenTTL: 604800,
		SandboxPatients: 25,
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EHR_BASE_URL", "https://ehr.example.com/fhir")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.AccessTokenTTL != 3600 {
		t.Errorf("AccessTokenTTL = %d, want 3600", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 604800 {
		t.Errorf("RefreshTokenTTL = %d, want 604800", cfg.RefreshTokenTTL)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestValidate_RequiresBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.EHRBaseURL = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "EHR_BASE_URL") {
		t.Errorf("Validate() = %v, want EHR_BASE_URL error", err)
	}
}

func TestValidate_RejectsBadTTLs(t *testing.T) {
	cfg := validConfig()
	cfg.AccessTokenTTL = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero access TTL")
	}

	cfg = validConfig()
	cfg.RefreshTokenTTL = 60
	cfg.AccessTokenTTL = 3600
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for refresh TTL shorter than access TTL")
	}
}

func TestValidate_ProductionRequiresSecureCookies(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "production"
	cfg.CookieSecure = false
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for insecure cookies in production")
	}
	cfg.CookieSecure = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestTokenURL(t *testing.T) {
	cfg := validConfig()
	if got := cfg.TokenURL(); got != "https://ehr.example.com/fhir/oauth2/token" {
		t.Errorf("TokenURL() = %q", got)
	}
	cfg.EHRTokenURL = "https://auth.example.com/token"
	if got := cfg.TokenURL(); got != "https://auth.example.com/token" {
		t.Errorf("TokenURL() = %q, want explicit override", got)
	}
}
