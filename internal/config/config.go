// Package config loads recall settings from an optional YAML file,
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/recall/internal/cron"
	"github.com/rcliao/recall/internal/store"
)

// Environment variables consulted after the file is loaded.
const (
	EnvConfig = "RECALL_CONFIG"
	EnvDB     = "RECALL_DB"
	EnvUser   = "RECALL_USER"
)

// Config is the root configuration.
type Config struct {
	DBPath      string        `yaml:"db_path"`
	DefaultUser string        `yaml:"default_user"`
	Log         LogConfig     `yaml:"log"`
	Store       StoreConfig   `yaml:"store"`
	Search      SearchConfig  `yaml:"search"`
	Purge       PurgeConfig   `yaml:"purge"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// StoreConfig tunes the SQLite store.
type StoreConfig struct {
	BusyTimeoutMS       int  `yaml:"busy_timeout_ms"`
	DisableRankedSearch bool `yaml:"disable_ranked_search"`
}

// SearchConfig holds search defaults for the CLI and MCP tools.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
}

// PurgeConfig controls the background purge sweep in serve mode.
type PurgeConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// MetricsConfig enables the Prometheus listener when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Defaults returns a Config with every field set to its built-in value.
func Defaults() *Config {
	return &Config{
		DBPath:      defaultDBPath(),
		DefaultUser: "",
		Log:         LogConfig{Level: "info", Format: "text"},
		Store:       StoreConfig{BusyTimeoutMS: 5000},
		Search:      SearchConfig{DefaultTopK: store.DefaultTopK},
		Purge:       PurgeConfig{Enabled: true, Schedule: cron.DefaultPurgeSchedule},
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".recall", "memory.db")
	}
	return filepath.Join(home, ".recall", "memory.db")
}

// Load builds the effective configuration. Defaults are applied first, then
// the YAML file at path (or $RECALL_CONFIG when path is empty), then the
// RECALL_DB and RECALL_USER overrides. A missing file is only an error when
// the path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
		explicit = path != ""
	}
	if !explicit {
		path = filepath.Join(filepath.Dir(cfg.DBPath), "config.yaml")
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded, err := expandEnv(raw)
		if err != nil {
			return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
		}
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if v := os.Getenv(EnvDB); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvUser); v != "" {
		cfg.DefaultUser = v
	}
	cfg.DBPath = expandHome(cfg.DBPath)

	return cfg, nil
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Returns an error listing all unresolved variables (no default, no env value).
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if len(subs) > 2 && subs[2] != nil {
			return subs[2]
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// BusyTimeout returns the store busy timeout as a duration.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Store.BusyTimeoutMS) * time.Millisecond
}
