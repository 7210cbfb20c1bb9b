// Package config loads CLI settings from vizbridge.toml and the environment.
//
// Precedence, lowest first: built-in defaults, the TOML file, VIZBRIDGE_*
// environment variables. Command-line flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// FileName is the config file looked up in the working directory.
const FileName = "vizbridge.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VIZBRIDGE_"

// Log levels accepted by LogLevel.
const (
	LevelInfo  = "info"
	LevelDebug = "debug"
	LevelTrace = "trace"
)

// Config holds CLI settings.
type Config struct {
	// DB is the SQLite file frames and lifecycle events are written to.
	DB       string `env:"DB"`
	LogLevel string `env:"LOG_LEVEL"`
	// OTelEndpoint enables OTLP/HTTP trace export when set.
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	// RenderTimeout bounds how long `render` waits for the first push to
	// settle. The bridge itself never times out a render.
	RenderTimeout time.Duration `env:"RENDER_TIMEOUT"`
	DefaultWidth  int           `env:"DEFAULT_WIDTH"`
	DefaultHeight int           `env:"DEFAULT_HEIGHT"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DB:            "vizbridge.db",
		LogLevel:      LevelInfo,
		RenderTimeout: 10 * time.Second,
		DefaultWidth:  800,
		DefaultHeight: 600,
	}
}

// fileConfig maps vizbridge.toml keys.
type fileConfig struct {
	DB            string `toml:"db"`
	LogLevel      string `toml:"log_level"`
	OTelEndpoint  string `toml:"otel_endpoint"`
	RenderTimeout string `toml:"render_timeout"`
	DefaultWidth  int    `toml:"default_width"`
	DefaultHeight int    `toml:"default_height"`
}

// Load builds the configuration. path names the TOML file; when empty,
// FileName is used if it exists. An explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(FileName); err == nil {
			path = FileName
		}
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile overlays the keys defined in path onto cfg.
func loadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("db") {
		cfg.DB = strings.TrimSpace(raw.DB)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}
	if meta.IsDefined("otel_endpoint") {
		cfg.OTelEndpoint = strings.TrimSpace(raw.OTelEndpoint)
	}
	if meta.IsDefined("render_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RenderTimeout))
		if err != nil {
			return fmt.Errorf("load config %s: render_timeout: %w", path, err)
		}
		cfg.RenderTimeout = d
	}
	if meta.IsDefined("default_width") {
		cfg.DefaultWidth = raw.DefaultWidth
	}
	if meta.IsDefined("default_height") {
		cfg.DefaultHeight = raw.DefaultHeight
	}
	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DB) == "" {
		errs = append(errs, errors.New("db is required"))
	}
	switch c.LogLevel {
	case LevelInfo, LevelDebug, LevelTrace:
	default:
		errs = append(errs, fmt.Errorf("log_level must be info, debug or trace, got %q", c.LogLevel))
	}
	if c.RenderTimeout <= 0 {
		errs = append(errs, fmt.Errorf("render_timeout must be positive, got %s", c.RenderTimeout))
	}
	if c.DefaultWidth <= 0 {
		errs = append(errs, fmt.Errorf("default_width must be positive, got %d", c.DefaultWidth))
	}
	if c.DefaultHeight <= 0 {
		errs = append(errs, fmt.Errorf("default_height must be positive, got %d", c.DefaultHeight))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
