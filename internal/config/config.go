// Package config loads the YAML configuration shared by the qb commands.
//
// Every field has a default, so a missing file and an empty file both
// yield Default(). Unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/querybuilder/internal/rules"
	"github.com/roach88/querybuilder/internal/session"
)

// Config is the qb configuration file.
type Config struct {
	// Defaults are the product defaults proposed by the inference rules.
	Defaults rules.Defaults `yaml:"defaults"`

	// MaxRulePasses bounds the settle loop of one transition.
	MaxRulePasses int `yaml:"max_rule_passes"`

	// FetchTimeout bounds one catalog fetch, as a Go duration.
	FetchTimeout string `yaml:"fetch_timeout"`

	// Conventions is an optional CUE file replacing the built-in
	// log-schema conventions.
	Conventions string `yaml:"conventions,omitempty"`

	Log     LogConfig     `yaml:"log"`
	Catalog CatalogConfig `yaml:"catalog"`
	Store   StoreConfig   `yaml:"store"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// CatalogConfig locates the database whose schema is introspected.
type CatalogConfig struct {
	Path string `yaml:"path,omitempty"`
}

// StoreConfig locates the saved query database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Defaults:      rules.DefaultDefaults(),
		MaxRulePasses: session.DefaultMaxRulePasses,
		FetchTimeout:  session.DefaultFetchTimeout.String(),
		Log:           LogConfig{Level: "info", Format: "text"},
		Store:         StoreConfig{Path: "qb.db"},
	}
}

// Load reads the configuration at path over Default(). A missing file is
// not an error when path is empty.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over Default() and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks every field of c.
func (c Config) Validate() error {
	if len(c.Defaults.TimeColumns) == 0 {
		return fmt.Errorf("defaults.time_columns must be non-empty")
	}
	for i, name := range c.Defaults.TimeColumns {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("defaults.time_columns[%d] is empty", i)
		}
	}
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults.time_range: %w", err)
	}
	if c.MaxRulePasses < 1 {
		return fmt.Errorf("max_rule_passes must be positive, got %d", c.MaxRulePasses)
	}
	if d, err := time.ParseDuration(c.FetchTimeout); err != nil || d <= 0 {
		return fmt.Errorf("fetch_timeout must be a positive duration, got %q", c.FetchTimeout)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	return nil
}

// Timeout returns FetchTimeout as a duration. Call only on a validated
// config.
func (c Config) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.FetchTimeout)
	return d
}

// SlogLevel maps Level to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds a logger writing to w. verbose forces debug level.
func (l LogConfig) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
