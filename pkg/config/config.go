// Package config loads batch detection settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks environment variables that override file settings.
	EnvPrefix = "FIRMPATH_"

	maxConfigFileSize = 1024 * 1024
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full batch job configuration.
type Config struct {
	Store  StoreConfig  `koanf:"store"`
	Detect DetectConfig `koanf:"detect"`
	Cache  CacheConfig  `koanf:"cache"`
	Log    LogConfig    `koanf:"log"`
}

// StoreConfig selects where edges are written.
type StoreConfig struct {
	Driver    string `koanf:"driver"`
	DSN       string `koanf:"dsn"` // File path for sqlite, connection string for postgres
	BatchSize int    `koanf:"batch_size"`
}

// DetectConfig tunes matching.
type DetectConfig struct {
	Workers         int     `koanf:"workers"`
	SimilarityFloor float64 `koanf:"similarity_floor"`
}

// CacheConfig controls the persistent match cache.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	Dir     string        `koanf:"dir"` // Empty means ~/.cache/firmpath
	TTL     time.Duration `koanf:"ttl"`
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `koanf:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{Cache: CacheConfig{Enabled: true}}
	applyDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path (skipped when path is empty), then applies
// FIRMPATH_* environment overrides, defaults and validation.
//
// Environment variables map onto keys by their first underscore:
//
//	FIRMPATH_STORE_DRIVER          -> store.driver
//	FIRMPATH_DETECT_SIMILARITY_FLOOR -> detect.similarity_floor
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte("cache:\n  enabled: true\n")), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load builtin defaults: %w", err)
	}

	if path != "" {
		content, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config %s is %d bytes, limit is %d", path, info.Size(), maxConfigFileSize)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return content, nil
}

// envKey maps FIRMPATH_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMemory
	}
	if cfg.Store.BatchSize == 0 {
		cfg.Store.BatchSize = 500
	}
	if cfg.Detect.Workers == 0 {
		cfg.Detect.Workers = 8
	}
	if cfg.Detect.SimilarityFloor == 0 {
		cfg.Detect.SimilarityFloor = 0.7
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 7 * 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, postgres", c.Store.Driver))
	}
	if c.Store.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("store.batch_size must be positive, got %d", c.Store.BatchSize))
	}
	if c.Detect.Workers < 1 {
		errs = append(errs, fmt.Errorf("detect.workers must be positive, got %d", c.Detect.Workers))
	}
	if c.Detect.SimilarityFloor <= 0 || c.Detect.SimilarityFloor > 1 {
		errs = append(errs, fmt.Errorf("detect.similarity_floor must be in (0, 1], got %g", c.Detect.SimilarityFloor))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel converts the configured level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}
