package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	EHRBaseURL      string   `mapstructure:"EHR_BASE_URL"`
	EHRTokenURL     string   `mapstructure:"EHR_TOKEN_URL"`
	EHRClientID     string   `mapstructure:"EHR_CLIENT_ID"`
	EHRClientSecret string   `mapstructure:"EHR_CLIENT_SECRET"`
	HTTPTimeout     int      `mapstructure:"HTTP_TIMEOUT"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	CookieSecure    bool     `mapstructure:"COOKIE_SECURE"`
	AccessTokenTTL  int      `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL int      `mapstructure:"REFRESH_TOKEN_TTL"`
	SandboxPort     string   `mapstructure:"SANDBOX_PORT"`
	SandboxKey      string   `mapstructure:"SANDBOX_SIGNING_KEY"`
	SandboxPatients int      `mapstructure:"SANDBOX_PATIENT_COUNT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("HTTP_TIMEOUT", 30)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("ACCESS_TOKEN_TTL", 3600)
	v.SetDefault("REFRESH_TOKEN_TTL", 604800)
	v.SetDefault("SANDBOX_PORT", "9090")
	v.SetDefault("SANDBOX_PATIENT_COUNT", 25)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("EHR_BASE_URL")
	v.BindEnv("EHR_TOKEN_URL")
	v.BindEnv("EHR_CLIENT_ID")
	v.BindEnv("EHR_CLIENT_SECRET")
	v.BindEnv("HTTP_TIMEOUT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("COOKIE_SECURE")
	v.BindEnv("ACCESS_TOKEN_TTL")
	v.BindEnv("REFRESH_TOKEN_TTL")
	v.BindEnv("SANDBOX_PORT")
	v.BindEnv("SANDBOX_SIGNING_KEY")
	v.BindEnv("SANDBOX_PATIENT_COUNT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TokenURL returns the upstream token-exchange endpoint. When EHR_TOKEN_URL
// is not set explicitly it defaults to the fixed OAuth2-style path under the
// EHR base URL.
func (c *Config) TokenURL() string {
	if c.EHRTokenURL != "" {
		return c.EHRTokenURL
	}
	return strings.TrimRight(c.EHRBaseURL, "/") + "/oauth2/token"
}

// RequestTimeout returns the outbound HTTP timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

// Validate checks that the configuration is safe to run the dashboard
// server. The sandbox command does not require an upstream, so it calls
// ValidateSandbox instead.
func (c *Config) Validate() error {
	if c.EHRBaseURL == "" {
		return fmt.Errorf("EHR_BASE_URL is required")
	}
	if _, err := url.ParseRequestURI(c.EHRBaseURL); err != nil {
		return fmt.Errorf("EHR_BASE_URL is not a valid URL: %w", err)
	}
	if c.EHRTokenURL != "" {
		if _, err := url.ParseRequestURI(c.EHRTokenURL); err != nil {
			return fmt.Errorf("EHR_TOKEN_URL is not a valid URL: %w", err)
		}
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %d", c.HTTPTimeout)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive (ACCESS_TOKEN_TTL=%d, REFRESH_TOKEN_TTL=%d)",
			c.AccessTokenTTL, c.RefreshTokenTTL)
	}
	if c.RefreshTokenTTL < c.AccessTokenTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL (%d) must not be shorter than ACCESS_TOKEN_TTL (%d)",
			c.RefreshTokenTTL, c.AccessTokenTTL)
	}
	if c.IsProduction() && !c.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true in production")
	}
	return nil
}

// ValidateSandbox checks the subset of configuration the sandbox command
// needs.
func (c *Config) ValidateSandbox() error {
	if c.SandboxPatients <= 0 {
		return fmt.Errorf("SANDBOX_PATIENT_COUNT must be positive, got %d", c.SandboxPatients)
	}
	return nil
}
