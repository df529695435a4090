package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadWithEnv("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, "9879", cfg.Port)
	assert.Equal(t, "http://localhost:9879", cfg.PublicURL)
	assert.Equal(t, "header", cfg.ClientAuth)
	assert.Equal(t, StorageFS, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "kitsune-oauth"), cfg.Storage.Dir)
	assert.Equal(t, 5*time.Minute, cfg.RefreshLead)
	assert.Zero(t, cfg.RefreshLeeway)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
backend_url: https://kitsune.example
port: "8080"
app_name: Kitsune Desktop
client_auth: params
refresh_leeway: 30s
storage:
  backend: redis
  redis:
    addr: redis:6379
    db: 2
`)

	cfg, err := LoadWithEnv(path, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "https://kitsune.example", cfg.BackendURL)
	assert.Equal(t, "http://localhost:8080", cfg.PublicURL)
	assert.Equal(t, "Kitsune Desktop", cfg.AppName)
	assert.Equal(t, "params", cfg.ClientAuth)
	assert.Equal(t, 30*time.Second, cfg.RefreshLeeway)
	assert.Equal(t, StorageRedis, cfg.Storage.Backend)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 2, cfg.Storage.Redis.DB)
	assert.Equal(t, "kitsune-oauth:", cfg.Storage.Redis.Prefix, "unset keys keep their defaults")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "backend_url: https://from-file.example\nport: \"8080\"\n")

	cfg, err := LoadWithEnv(path, envMap(map[string]string{
		"KITSUNE_BACKEND_URL":    "https://from-env.example",
		"KITSUNE_PUBLIC_URL":     "https://proxy.example",
		"ADMIN_API_KEY":          "k",
		"KITSUNE_STORAGE":        "dynamodb",
		"DYNAMODB_TABLE":         "oauth",
		"DYNAMODB_ENDPOINT":      "http://localhost:8000",
		"REDIS_DB":               "3",
		"KITSUNE_REFRESH_LEAD":   "2m",
		"KITSUNE_REFRESH_LEEWAY": "10s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://from-env.example", cfg.BackendURL)
	assert.Equal(t, "https://proxy.example", cfg.PublicURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "k", cfg.AdminAPIKey)
	assert.Equal(t, StorageDynamoDB, cfg.Storage.Backend)
	assert.Equal(t, "oauth", cfg.Storage.Dynamo.Table)
	assert.Equal(t, "http://localhost:8000", cfg.Storage.Dynamo.Endpoint)
	assert.Equal(t, 3, cfg.Storage.Redis.DB)
	assert.Equal(t, 2*time.Minute, cfg.RefreshLead)
	assert.Equal(t, 10*time.Second, cfg.RefreshLeeway)
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"KITSUNE_STORAGE":     "kv",
		"KITSUNE_PUBLIC_URL":  "https://oauth.workers.dev",
		"KITSUNE_CLIENT_AUTH": "params",
	}))
	require.NoError(t, err)
	assert.Equal(t, StorageKV, cfg.Storage.Backend)
	assert.Equal(t, "kitsune_oauth_kv", cfg.Storage.KVBinding)
	assert.Equal(t, "https://oauth.workers.dev", cfg.PublicURL)
	assert.Equal(t, "params", cfg.ClientAuth)
}

func TestLoadErrors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), envMap(nil))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadWithEnv(writeConfig(t, "port: [1, 2"), envMap(nil))
		assert.ErrorContains(t, err, "error loading config")
	})

	cases := map[string]map[string]string{
		"relative backend":    {"KITSUNE_BACKEND_URL": "/graphql"},
		"bad port":            {"PORT": "http"},
		"bad client auth":     {"KITSUNE_CLIENT_AUTH": "cookie"},
		"bad redis db":        {"REDIS_DB": "zero"},
		"bad duration":        {"KITSUNE_REFRESH_LEAD": "soon"},
		"negative leeway":     {"KITSUNE_REFRESH_LEEWAY": "-1s"},
		"unknown storage":     {"KITSUNE_STORAGE": "floppy"},
		"dynamodb sans table": {"KITSUNE_STORAGE": "dynamodb"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWithEnv(writeConfig(t, ""), envMap(env))
			assert.Error(t, err)
		})
	}
}
