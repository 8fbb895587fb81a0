package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "3001", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "0.0.0.0:3001", cfg.Server.Addr())

	// Storage config
	assert.Equal(t, "data/snapshots.db", cfg.Storage.Path)

	// Upload config
	assert.Equal(t, int64(50<<20), cfg.Upload.MaxBytes)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.Empty(t, cfg.CORS.Origins)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "3001", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                    "9000",
		"HOST":                    "127.0.0.1",
		"DB_PATH":                 "/tmp/snap.db",
		"UPLOAD_MAX_BYTES":        "1024",
		"LOG_LEVEL":               "debug",
		"LOG_DEV":                 "true",
		"RATE_LIMIT_RPS":          "500",
		"RATE_LIMIT_BURST":        "1000",
		"RATE_LIMIT_ENABLED":      "false",
		"CORS_ORIGINS":            "http://localhost:5173,https://snap.example",
		"BREAKER_MAX_FAILURES":    "9",
		"BREAKER_TIMEOUT_SECONDS": "3",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "/tmp/snap.db", cfg.Storage.Path)
	assert.Equal(t, int64(1024), cfg.Upload.MaxBytes)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"http://localhost:5173", "https://snap.example"}, cfg.CORS.Origins)
	assert.Equal(t, uint32(9), cfg.Breaker.MaxFailures)
	assert.Equal(t, 3, cfg.Breaker.TimeoutSeconds)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Defaults still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "data/snapshots.db", cfg.Storage.Path)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "sidesnap.toml",
			content: `
[server]
port = "4000"

[storage]
path = "/var/lib/sidesnap/snap.db"

[cors]
origins = ["http://a.example"]
`,
		},
		{
			name: "yaml",
			file: "sidesnap.yaml",
			content: `
server:
  port: "4000"
storage:
  path: /var/lib/sidesnap/snap.db
cors:
  origins:
    - http://a.example
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			cfg := Default()
			require.NoError(t, LoadFile(path, cfg))

			assert.Equal(t, "4000", cfg.Server.Port)
			assert.Equal(t, "0.0.0.0", cfg.Server.Host, "keys absent from the file keep defaults")
			assert.Equal(t, "/var/lib/sidesnap/snap.db", cfg.Storage.Path)
			assert.Equal(t, []string{"http://a.example"}, cfg.CORS.Origins)
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sidesnap.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = \"4000\"\nhost = \"10.0.0.1\"\n"), 0o600))

	t.Setenv(FileEnv, path)
	t.Setenv("PORT", "5000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port, "environment overrides file")
	assert.Equal(t, "10.0.0.1", cfg.Server.Host, "file overrides defaults")
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	assert.Error(t, LoadFile(filepath.Join(dir, "missing.toml"), Default()))

	ini := filepath.Join(dir, "cfg.ini")
	require.NoError(t, os.WriteFile(ini, []byte("port=1"), 0o600))
	assert.Error(t, LoadFile(ini, Default()))

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[server\n"), 0o600))
	assert.Error(t, LoadFile(bad, Default()))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = "http"
	cfg.Storage.Path = ""
	cfg.Upload.MaxBytes = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "storage path")
	assert.Contains(t, err.Error(), "upload max bytes")

	t.Setenv("PORT", "not-a-port")
	_, err = Load()
	assert.Error(t, err)
	assert.Equal(t, "3001", LoadOrDefault().Server.Port)
}
