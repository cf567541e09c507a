// Package config loads the workflowd configuration: built-in defaults, then
// an optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

// Config is the complete server configuration.
type Config struct {
	Listen   string   `yaml:"listen"`
	Store    string   `yaml:"store"`
	Postgres Postgres `yaml:"postgres"`
	Badger   Badger   `yaml:"badger"`
	Log      Log      `yaml:"log"`
}

// Postgres configures the PostgreSQL store.
type Postgres struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

// Badger configures the embedded store. An empty Path with InMemory false is
// invalid.
type Badger struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen: ":3000",
		Store:  StorePostgres,
		Postgres: Postgres{
			MaxConns: 10,
		},
		Badger: Badger{
			Path: "./data/workflow",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("DATABASE_URL"); ok {
		c.Postgres.URL = v
	}
	if v, ok := lookup("WORKFLOW_LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := lookup("WORKFLOW_STORE"); ok {
		c.Store = v
	}
	if v, ok := lookup("WORKFLOW_BADGER_PATH"); ok {
		c.Badger.Path = v
	}
	if v, ok := lookup("WORKFLOW_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// Validate checks that the selected store is fully configured.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	switch c.Store {
	case StorePostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("postgres.url (or DATABASE_URL) is required"))
		}
	case StoreBadger:
		if c.Badger.Path == "" && !c.Badger.InMemory {
			errs = append(errs, errors.New("badger.path is required unless badger.in_memory is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Logger builds the process logger writing to w.
func (l Log) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
