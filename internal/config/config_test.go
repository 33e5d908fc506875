package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"

bouncify:
  api_key: "test-api-key"
  base_url: "https://api.bouncify.example/v1"
  timeout_seconds: 45

watcher:
  interval_seconds: 5
  max_age_minutes: 30

storage:
  type: "local"
  local_path: "./test-data"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "test-api-key", cfg.Bouncify.APIKey)
	assert.Equal(t, "https://api.bouncify.example/v1", cfg.Bouncify.BaseURL)
	assert.Equal(t, 45, cfg.Bouncify.TimeoutSeconds)
	assert.Equal(t, 5, cfg.Watcher.IntervalSeconds)
	assert.Equal(t, "./test-data", cfg.Storage.LocalPath)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server: {}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "https://api.bouncify.io/v1", cfg.Bouncify.BaseURL)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 3, cfg.Watcher.IntervalSeconds)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Contains(t, cfg.Upload.AllowedTypes, "text/csv")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
bouncify:
  api_key: "file-key"
`)

	t.Setenv("BOUNCIFY_API_KEY", "env-key")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/verify")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Bouncify.APIKey)
	assert.Equal(t, "postgres://env-db:5432/verify", cfg.Database.URL)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestTimeoutHelpers(t *testing.T) {
	cfg := BouncifyConfig{TimeoutSeconds: 45}
	assert.Equal(t, "45s", cfg.Timeout().String())

	w := WatcherConfig{IntervalSeconds: 3, MaxAgeMinutes: 60}
	assert.Equal(t, "3s", w.Interval().String())
	assert.Equal(t, "1h0m0s", w.MaxAge().String())
}
