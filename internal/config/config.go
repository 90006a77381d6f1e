// Package config loads service settings from defaults, an optional YAML file
// and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// SMTPConfig is the outbound mail relay.
type SMTPConfig struct {
	Host     string `env:"HOST" yaml:"host"`
	Port     int    `env:"PORT" yaml:"port"`
	User     string `env:"USER" yaml:"user"`
	Password string `env:"PASSWORD" yaml:"password"`
	From     string `env:"FROM" yaml:"from"`
}

// S3Config is the object storage used for uploads and blog content.
type S3Config struct {
	Endpoint  string `env:"ENDPOINT" yaml:"endpoint"`
	Region    string `env:"REGION" yaml:"region"`
	AccessKey string `env:"ACCESS_KEY" yaml:"access_key"`
	SecretKey string `env:"SECRET_KEY" yaml:"secret_key"`
	Bucket    string `env:"BUCKET" yaml:"bucket"`

	// KeyPrefix is prepended to every object key.
	KeyPrefix string `env:"KEY_PREFIX" yaml:"key_prefix"`

	// PublicURL is the base used to build public object URLs.
	PublicURL string `env:"PUBLIC_URL" yaml:"public_url"`
}

// RateLimitConfig controls the per-IP request limiter.
type RateLimitConfig struct {
	// Backend is "postgres" (shared fixed window) or "memory" (token bucket).
	Backend string        `env:"BACKEND" yaml:"backend"`
	Points  int           `env:"POINTS" yaml:"points"`
	Window  time.Duration `env:"WINDOW" yaml:"window"`
}

// Config is the service configuration.
type Config struct {
	Environment string `env:"ENVIRONMENT" yaml:"environment"`
	Port        int    `env:"PORT" yaml:"port"`
	DatabaseURL string `env:"DATABASE_URL" yaml:"database_url"`

	// AppURL is the public base URL used in outbound links.
	AppURL string `env:"APP_URL" yaml:"app_url"`

	SessionCookieName string        `env:"SESSION_COOKIE_NAME" yaml:"session_cookie_name"`
	SessionTTL        time.Duration `env:"SESSION_TTL" yaml:"session_ttl"`
	ResetTTL          time.Duration `env:"RESET_PASSWORD_TTL" yaml:"reset_password_ttl"`
	BcryptCost        int           `env:"BCRYPT_COST" yaml:"bcrypt_cost"`
	DefaultOrgID      int64         `env:"DEFAULT_ORG_ID" yaml:"default_org_id"`

	// AllowedOrigins are accepted by the CSRF origin check in addition to AppURL.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," yaml:"allowed_origins"`

	GeoIPDBPath string `env:"GEOIP_DB_PATH" yaml:"geoip_db_path"`
	CronCleanup string `env:"CRON_CLEANUP" yaml:"cron_cleanup"`
	LogLevel    string `env:"LOG_LEVEL" yaml:"log_level"`

	SMTP      SMTPConfig      `envPrefix:"SMTP_" yaml:"smtp"`
	S3        S3Config        `envPrefix:"S3_" yaml:"s3"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_" yaml:"rate_limit"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Environment:       EnvDevelopment,
		Port:              8080,
		AppURL:            "http://localhost:4321",
		SessionCookieName: "session_token",
		SessionTTL:        7 * 24 * time.Hour,
		ResetTTL:          time.Hour,
		BcryptCost:        12,
		DefaultOrgID:      1,
		CronCleanup:       "@every 1h",
		LogLevel:          "info",
		SMTP: SMTPConfig{
			Port: 587,
			From: `"EduCBT Team" <noreply@sidrstudio.com>`,
		},
		S3: S3Config{
			Region:    "us-east-1",
			KeyPrefix: "sidrstudio/",
		},
		RateLimit: RateLimitConfig{
			Backend: "postgres",
			Points:  50,
			Window:  time.Second,
		},
	}
}

// Load builds the configuration. When path is empty EDUCBT_CONFIG is consulted.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("EDUCBT_CONFIG")
	}
	if path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() // nolint: errcheck

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func parseEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment variables: %w", err)
	}
	return nil
}

// Validate normalises URLs and rejects unusable values.
func (c *Config) Validate() error {
	c.AppURL = strings.TrimSuffix(c.AppURL, "/")
	c.S3.PublicURL = strings.TrimSuffix(c.S3.PublicURL, "/")
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))

	switch c.Environment {
	case EnvProduction, EnvDevelopment:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	switch c.RateLimit.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Points <= 0 {
		return errors.New("rate limit points must be positive")
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Second
	}
	if c.SessionTTL <= 0 || c.ResetTTL <= 0 {
		return errors.New("session and reset ttl must be positive")
	}
	if c.SessionCookieName == "" {
		return errors.New("session cookie name is required")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// Addr is the HTTP listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }
