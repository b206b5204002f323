// Package config provides configuration management for parasim.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/parasim/internal/engine"
	"github.com/thebtf/parasim/pkg/similarity"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 3000

	// DefaultMaxBodyBytes caps JSON request bodies (base64 payload included).
	DefaultMaxBodyBytes = 10 << 20

	// DefaultRateLimit is the sustained requests per second allowed per client.
	DefaultRateLimit = 10

	// DefaultRateBurst is the per-client burst size.
	DefaultRateBurst = 20

	// DefaultLogLevel is the zerolog level name used when none is configured.
	DefaultLogLevel = "info"
)

// Environment variables that override settings file values.
const (
	EnvDataDir      = "PARASIM_DATA_DIR"
	EnvWorkerPort   = "PARASIM_WORKER_PORT"
	EnvThreshold    = "PARASIM_THRESHOLD"
	EnvBackend      = "PARASIM_BACKEND"
	EnvBuckets      = "PARASIM_HASHED_BUCKETS"
	EnvWorkers      = "PARASIM_WORKERS"
	EnvLogLevel     = "PARASIM_LOG_LEVEL"
	EnvMaxBodyBytes = "PARASIM_MAX_BODY_BYTES"
)

// DefaultAllowedOrigins are the browser origins allowed by CORS.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:5173", // Vite dev server
}

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerPort   int   `yaml:"worker_port"`
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// Analysis settings
	Threshold     float64 `yaml:"threshold"`      // 0.0-1.0, minimum similarity for a pair
	Backend       string  `yaml:"backend"`        // "cosine" or "hashed"
	HashedBuckets int     `yaml:"hashed_buckets"` // vector width for the hashed backend
	Workers       int     `yaml:"workers"`        // pair scoring goroutines (0 = sequential)

	// HTTP protection
	RateLimit      float64  `yaml:"rate_limit"` // requests per second per client
	RateBurst      int      `yaml:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (~/.parasim unless overridden).
func DataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".parasim")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings creates a default settings file if it doesn't exist.
func EnsureSettings() error {
	path := SettingsPath()

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	defaultSettings := `# parasim settings
worker_port: 3000
threshold: 0.7
backend: cosine
hashed_buckets: 100
workers: 0
log_level: info
`
	return os.WriteFile(path, []byte(defaultSettings), 0600)
}

// EnsureAll ensures all required directories and files exist.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerPort:     DefaultWorkerPort,
		MaxBodyBytes:   DefaultMaxBodyBytes,
		Threshold:      engine.DefaultThreshold,
		Backend:        similarity.DefaultBackend,
		HashedBuckets:  similarity.DefaultBuckets,
		Workers:        0,
		RateLimit:      DefaultRateLimit,
		RateBurst:      DefaultRateBurst,
		AllowedOrigins: append([]string(nil), DefaultAllowedOrigins...),
		LogLevel:       DefaultLogLevel,
	}
}

// Load loads configuration from the settings file, merging with defaults,
// then applies environment overrides and validates the result.
func Load() (*Config, error) {
	return LoadFile(SettingsPath())
}

// LoadFile is Load with an explicit settings path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read settings: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from PARASIM_* environment variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvWorkerPort); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkerPort, err)
		}
		c.WorkerPort = p
	}
	if v := os.Getenv(EnvThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvThreshold, err)
		}
		c.Threshold = f
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvBuckets); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBuckets, err)
		}
		c.HashedBuckets = n
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvMaxBodyBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxBodyBytes, err)
		}
		c.MaxBodyBytes = n
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.WorkerPort <= 0 || c.WorkerPort > 65535 {
		return fmt.Errorf("worker_port %d out of range", c.WorkerPort)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("rate_limit and rate_burst must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if err := c.Analysis().Validate(); err != nil {
		return fmt.Errorf("analysis settings: %w", err)
	}
	return nil
}

// Analysis returns the engine settings described by this config.
func (c *Config) Analysis() engine.Settings {
	return engine.Settings{
		Threshold: c.Threshold,
		Backend:   strings.ToLower(strings.TrimSpace(c.Backend)),
		Buckets:   c.HashedBuckets,
		Workers:   c.Workers,
	}
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		configMu.Lock()
		globalConfig = cfg
		configMu.Unlock()
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Reload re-reads the settings file and swaps the global configuration.
// On error the previous configuration stays in effect.
func Reload() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	configOnce.Do(func() {})
	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return cfg, nil
}
