// Package config handles loading and saving rb configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/riskboard/config.yaml
//   - Data:    ~/.local/share/riskboard/ (default SQLite database)
//   - State:   ~/.local/state/riskboard/ (filter values, saved presets)
//
// Environment variables (optionally from a .env file in the working
// directory) override the file; command-line flags override both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appDir = "riskboard"

// DatasourceConfig selects the record backend.
type DatasourceConfig struct {
	Driver string `yaml:"driver,omitempty"` // sqlite, postgres, memory
	DSN    string `yaml:"dsn,omitempty"`    // file path for sqlite, URL for postgres
}

// UIConfig holds dashboard preferences.
type UIConfig struct {
	GridSize int   `yaml:"grid_size,omitempty"`
	Mouse    *bool `yaml:"mouse,omitempty"` // nil = enabled
	Watch    *bool `yaml:"watch,omitempty"` // reload on external database changes
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text, json
	File   string `yaml:"file,omitempty"`   // TUI log file; empty = state dir
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"` // empty = disabled
}

// Config is the top-level configuration for rb.
type Config struct {
	Datasource DatasourceConfig `yaml:"datasource,omitempty"`
	UI         UIConfig         `yaml:"ui,omitempty"`
	Log        LogConfig        `yaml:"log,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Datasource: DatasourceConfig{
			Driver: "sqlite",
			DSN:    DefaultDSN(),
		},
		UI: UIConfig{
			GridSize: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// MouseEnabled reports whether mouse support is on.
func (c Config) MouseEnabled() bool {
	return c.UI.Mouse == nil || *c.UI.Mouse
}

// WatchEnabled reports whether external database changes trigger reloads.
func (c Config) WatchEnabled() bool {
	return c.UI.Watch == nil || *c.UI.Watch
}

// Validate checks values that would otherwise fail later.
func (c Config) Validate() error {
	switch c.Datasource.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unknown datasource driver %q", c.Datasource.Driver)
	}
	if c.Datasource.Driver != "memory" && c.Datasource.DSN == "" {
		return fmt.Errorf("datasource dsn is required for driver %q", c.Datasource.Driver)
	}
	if c.UI.GridSize < 2 || c.UI.GridSize > 10 {
		return fmt.Errorf("ui.grid_size must be between 2 and 10, got %d", c.UI.GridSize)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// ConfigDir returns the XDG config directory for rb.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for rb.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// StateDir returns the XDG state directory for rb.
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, fallback, appDir)
}

// DefaultDSN returns the default SQLite database path.
func DefaultDSN() string {
	dir := DataDir()
	if dir == "" {
		return "risks.db"
	}
	return filepath.Join(dir, "risks.db")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// environment overrides. Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		ApplyEnv(&cfg)
		return cfg, nil
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	ApplyEnv(&cfg)
	return cfg, nil
}

// LoadFrom reads config from a specific path without environment overrides.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Datasource.Driver == "sqlite" {
		cfg.Datasource.DSN = expandHome(cfg.Datasource.DSN)
	}
	cfg.Log.File = expandHome(cfg.Log.File)
	return cfg, nil
}

// ApplyEnv overlays RB_* environment variables, loading a .env file from the
// working directory first when one exists. Variables already set in the
// environment win over the .env file.
func ApplyEnv(cfg *Config) {
	_ = godotenv.Load()

	cfg.Datasource.Driver = getEnv("RB_DB_DRIVER", cfg.Datasource.Driver)
	cfg.Datasource.DSN = getEnv("RB_DB_DSN", cfg.Datasource.DSN)
	cfg.Log.Level = getEnv("RB_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("RB_LOG_FORMAT", cfg.Log.Format)
	cfg.Metrics.Addr = getEnv("RB_METRICS_ADDR", cfg.Metrics.Addr)
	cfg.UI.GridSize = getEnvInt("RB_GRID_SIZE", cfg.UI.GridSize)
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
