package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

// FileEnv names the environment variable holding an optional config file.
const FileEnv = "SIDESNAP_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Storage   StorageConfig   `toml:"storage" yaml:"storage"`
	Upload    UploadConfig    `toml:"upload" yaml:"upload"`
	Logging   LogConfig       `toml:"logging" yaml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	CORS      CORSConfig      `toml:"cors" yaml:"cors"`
	Breaker   BreakerConfig   `toml:"breaker" yaml:"breaker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port                   string `envconfig:"PORT" toml:"port" yaml:"port"`
	Host                   string `envconfig:"HOST" toml:"host" yaml:"host"`
	ShutdownTimeoutSeconds int    `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" toml:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// StorageConfig holds snapshot database configuration.
type StorageConfig struct {
	Path          string `envconfig:"DB_PATH" toml:"path" yaml:"path"`
	BusyTimeoutMS int    `envconfig:"DB_BUSY_TIMEOUT_MS" toml:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// UploadConfig bounds snapshot uploads.
type UploadConfig struct {
	MaxBytes int64 `envconfig:"UPLOAD_MAX_BYTES" toml:"max_bytes" yaml:"max_bytes"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled" yaml:"enabled"`
}

// CORSConfig lists allowed browser origins. Empty allows any origin.
type CORSConfig struct {
	Origins []string `envconfig:"CORS_ORIGINS" toml:"origins" yaml:"origins"`
}

// BreakerConfig configures the storage circuit breaker.
type BreakerConfig struct {
	MaxFailures    uint32 `envconfig:"BREAKER_MAX_FAILURES" toml:"max_failures" yaml:"max_failures"`
	TimeoutSeconds int    `envconfig:"BREAKER_TIMEOUT_SECONDS" toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Load builds configuration from defaults, then the file named by
// SIDESNAP_CONFIG if set, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile overlays a TOML or YAML file onto cfg. Keys missing from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config file type %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	if _, perr := strconv.Atoi(c.Server.Port); perr != nil {
		err = multierr.Append(err, fmt.Errorf("server port %q is not a number", c.Server.Port))
	}
	if c.Storage.Path == "" {
		err = multierr.Append(err, errors.New("storage path is required"))
	}
	if c.Upload.MaxBytes <= 0 {
		err = multierr.Append(err, errors.New("upload max bytes must be positive"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		err = multierr.Append(err, errors.New("rate limit rps and burst must be positive when enabled"))
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   "3001",
			Host:                   "0.0.0.0",
			ShutdownTimeoutSeconds: 10,
		},
		Storage: StorageConfig{
			Path:          "data/snapshots.db",
			BusyTimeoutMS: 10_000,
		},
		Upload: UploadConfig{
			MaxBytes: 50 << 20,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
		Breaker: BreakerConfig{
			MaxFailures:    5,
			TimeoutSeconds: 30,
		},
	}
}
