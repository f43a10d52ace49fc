package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("HTTP_ADDR", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "annotator:notifications", cfg.Redis.NotificationsKey)
	assert.Equal(t, 100, cfg.Redis.NotificationsMax)
	assert.Zero(t, cfg.AnnotationAPI.Timeout)
	assert.False(t, cfg.OTel.Enabled())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "annotator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: production
http_addr: ":9090"
annotation_api:
  url: http://api.internal/api
  timeout: 3s
redis:
  addr: redis:6379
  notifications_max: 20
`), 0o600))

	t.Setenv("APP_ENV", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("ANNOTATION_API_TOKEN", "secret")
	t.Setenv("NOTIFICATIONS_MAX", "50")
	t.Setenv("ANNOTATION_API_TIMEOUT", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "http://api.internal/api", cfg.AnnotationAPI.URL)
	assert.Equal(t, 3*time.Second, cfg.AnnotationAPI.Timeout)
	assert.Equal(t, "secret", cfg.AnnotationAPI.Token)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 50, cfg.Redis.NotificationsMax)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvDurationOr(t *testing.T) {
	t.Setenv("X_TIMEOUT", "1500")
	assert.Equal(t, 1500*time.Millisecond, envDurationOr("X_TIMEOUT", 0))
	t.Setenv("X_TIMEOUT", "2m")
	assert.Equal(t, 2*time.Minute, envDurationOr("X_TIMEOUT", 0))
	t.Setenv("X_TIMEOUT", "soon")
	assert.Equal(t, time.Second, envDurationOr("X_TIMEOUT", time.Second))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.ValidateServe())
	assert.Error(t, cfg.ValidateAPI())

	cfg.AnnotationAPI.URL = ""
	assert.Error(t, cfg.ValidateServe())

	cfg.Postgres.DSN = "postgres://u:p@localhost/db"
	assert.NoError(t, cfg.ValidateAPI())
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://app:****@db:5432/annotations?sslmode=disable",
		RedactDSN("postgres://app:hunter2@db:5432/annotations?sslmode=disable"))
	assert.Equal(t, "postgres://db:5432/annotations", RedactDSN("postgres://db:5432/annotations"))
}
