// Package config reads the optional YAML configuration file for the
// projectile server. Environment overrides are applied by the binary on top
// of the values loaded here.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Addr       string `yaml:"addr"`
	TrustProxy bool   `yaml:"trust_proxy"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type ChartConfig struct {
	WidthPx  int `yaml:"width_px"`
	HeightPx int `yaml:"height_px"`
	DPI      int `yaml:"dpi"`
}

type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type SessionConfig struct {
	MaxConcurrentPerIP int           `yaml:"max_concurrent_per_ip"`
	MaxTotal           int           `yaml:"max_total"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ReadLimit          int64         `yaml:"read_limit"`
}

// Config is the top-level structure of projectile.yaml.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
	Chart   ChartConfig   `yaml:"chart"`
	Cache   CacheConfig   `yaml:"cache"`
	Session SessionConfig `yaml:"session"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP:  HTTPConfig{Addr: ":8080"},
		Log:   LogConfig{Level: "info"},
		Chart: ChartConfig{WidthPx: 640, HeightPx: 360, DPI: 96},
		Cache: CacheConfig{
			TTL:           10 * time.Minute,
			MaxEntries:    256,
			SweepInterval: 30 * time.Second,
		},
		Session: SessionConfig{
			MaxConcurrentPerIP: 4,
			MaxTotal:           1000,
			PingInterval:       30 * time.Second,
			WriteTimeout:       10 * time.Second,
			ReadLimit:          4096,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr must not be empty")
	}
	if c.Auth.Enabled && c.Auth.Token == "" {
		return errors.New("auth.token is required when auth is enabled")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Chart.WidthPx < 0 || c.Chart.HeightPx < 0 || c.Chart.DPI < 0 {
		return errors.New("chart dimensions must not be negative")
	}
	if c.Cache.MaxEntries < 0 {
		return errors.New("cache.max_entries must not be negative")
	}
	if c.Session.MaxConcurrentPerIP < 0 || c.Session.MaxTotal < 0 {
		return errors.New("session limits must not be negative")
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
