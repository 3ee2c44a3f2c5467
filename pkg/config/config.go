// Package config loads claimdeck configuration from YAML with environment
// variable overrides. Precedence: defaults, then user config, then project
// config, then environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation.
const (
	DefaultBackendTimeout    = 30 * time.Second
	DefaultRequestsPerSecond = 20.0
	DefaultReconnectBase     = 500 * time.Millisecond
	DefaultReconnectMax      = 30 * time.Second
	DefaultPageSize          = 25
	DefaultServerBind        = "127.0.0.1:8787"
	DefaultPersistPath       = "claimdeck/state.db"
)

// Config is the complete claimdeck configuration.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Bus      BusConfig      `yaml:"bus"`
	UI       UIConfig       `yaml:"ui"`
	Persist  PersistConfig  `yaml:"persist"`
	Server   ServerConfig   `yaml:"server"`
}

// BackendConfig points at the REST backend.
type BackendConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Token             string        `yaml:"token"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// RealtimeConfig points at the websocket change feed.
type RealtimeConfig struct {
	BaseURL   string          `yaml:"base_url"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig tunes the realtime reconnect backoff.
type ReconnectConfig struct {
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Multiplier float64       `yaml:"multiplier"`
}

// BusConfig enables the optional change-event bus.
type BusConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"` // empty means in-memory
}

// UIConfig tunes list presentation defaults.
type UIConfig struct {
	PageSize             int      `yaml:"page_size"`
	DefaultClaimStatuses []string `yaml:"default_claim_statuses"`
}

// PersistConfig locates the persisted UI-state database.
type PersistConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig binds the local dashboard server.
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			Timeout:           DefaultBackendTimeout,
			RequestsPerSecond: DefaultRequestsPerSecond,
		},
		Realtime: RealtimeConfig{
			Reconnect: ReconnectConfig{
				BaseDelay:  DefaultReconnectBase,
				MaxDelay:   DefaultReconnectMax,
				Multiplier: 2.0,
			},
		},
		UI: UIConfig{
			PageSize: DefaultPageSize,
		},
		Persist: PersistConfig{
			Path: defaultPersistPath(),
		},
		Server: ServerConfig{
			Bind: DefaultServerBind,
		},
	}
}

func defaultPersistPath() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, DefaultPersistPath)
	}
	return DefaultPersistPath
}

// Load loads configuration from default locations with proper precedence.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userPath := filepath.Join(home, ".claimdeck", "config.yaml")
		if err := loadAndMerge(cfg, userPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	projectPath := filepath.Join(".", ".claimdeck", "config.yaml")
	if err := loadAndMerge(cfg, projectPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLAIMDECK_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("CLAIMDECK_BACKEND_TOKEN"); v != "" {
		cfg.Backend.Token = v
	}
	if v := os.Getenv("CLAIMDECK_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.Timeout = d
		}
	}
	if v := os.Getenv("CLAIMDECK_REALTIME_URL"); v != "" {
		cfg.Realtime.BaseURL = v
	}
	if v := os.Getenv("CLAIMDECK_BUS_URL"); v != "" {
		cfg.Bus.Enabled = true
		cfg.Bus.URL = v
	}
	if v := os.Getenv("CLAIMDECK_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.UI.PageSize = n
		}
	}
	if v := os.Getenv("CLAIMDECK_STATE_PATH"); v != "" {
		cfg.Persist.Path = v
	}
	if v := os.Getenv("CLAIMDECK_BIND"); v != "" {
		cfg.Server.Bind = v
	}
}

// Validate checks required fields and normalizes value ranges.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if _, err := url.Parse(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("backend.base_url: %w", err)
	}
	if c.Realtime.BaseURL == "" {
		return fmt.Errorf("realtime.base_url is required")
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = DefaultBackendTimeout
	}
	if c.Backend.RequestsPerSecond <= 0 {
		c.Backend.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.Realtime.Reconnect.BaseDelay <= 0 {
		c.Realtime.Reconnect.BaseDelay = DefaultReconnectBase
	}
	if c.Realtime.Reconnect.MaxDelay < c.Realtime.Reconnect.BaseDelay {
		c.Realtime.Reconnect.MaxDelay = DefaultReconnectMax
	}
	if c.Realtime.Reconnect.Multiplier < 1 {
		c.Realtime.Reconnect.Multiplier = 2.0
	}
	if c.UI.PageSize <= 0 {
		c.UI.PageSize = DefaultPageSize
	}
	if c.Server.Bind == "" {
		c.Server.Bind = DefaultServerBind
	}
	return nil
}
