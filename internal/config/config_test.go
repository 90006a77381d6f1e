package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EDUCBT_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "session_token", cfg.SessionCookieName)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Hour, cfg.ResetTTL)
	assert.Equal(t, 50, cfg.RateLimit.Points)
	assert.Equal(t, "sidrstudio/", cfg.S3.KeyPrefix)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "educbt.yaml")
	body := []byte("environment: production\nport: 9000\napp_url: https://cbt.example.com/\nsmtp:\n  host: smtp.example.com\nrate_limit:\n  backend: memory\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("SMTP_USER", "mailer")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, ":9100", cfg.Addr())
	assert.Equal(t, "https://cbt.example.com", cfg.AppURL)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, "mailer", cfg.SMTP.User)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.Backend = "redis"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Environment = "staging"
	assert.Error(t, cfg.Validate())
}
