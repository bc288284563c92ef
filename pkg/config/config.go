// Package config loads the masonry configuration file.
//
// The file is TOML and every key is optional; missing keys keep the values
// from [Default]. The default location is
// $XDG_CONFIG_HOME/masonry/config.toml, falling back to
// ~/.config/masonry/config.toml.
//
//	[layout]
//	min_column_width = 250
//	max_columns = 5
//	estimated_card_height = 300
//	buffer = 3
//	boundary_threshold = 0.1
//
//	[source]
//	uri = "photos.json"
//	page_size = 30
//
//	[cache]
//	backend = "file"          # file | redis | none
//	redis_addr = "localhost:6379"
//	ttl = "168h"
//
//	[server]
//	addr = ":8080"
//	rate_limit = 20           # requests per second, 0 disables
//	rate_burst = 40
//
//	[log]
//	level = "info"
//	file = ""                 # rotate logs into this file when set
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/masonry/pkg/cache"
	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
	"github.com/matzehuels/masonry/pkg/source"
	"github.com/matzehuels/masonry/pkg/viewport"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config is the full configuration file.
type Config struct {
	Layout LayoutConfig `toml:"layout"`
	Source SourceConfig `toml:"source"`
	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// LayoutConfig holds the layout engine constants.
type LayoutConfig struct {
	MinColumnWidth      float64 `toml:"min_column_width"`
	MaxColumns          int     `toml:"max_columns"`
	EstimatedCardHeight float64 `toml:"estimated_card_height"`
	Buffer              int     `toml:"buffer"`
	BoundaryThreshold   float64 `toml:"boundary_threshold"`
}

// Masonry returns the engine configuration.
func (c LayoutConfig) Masonry() masonry.Config {
	return masonry.Config{
		MinColumnWidth:      c.MinColumnWidth,
		MaxColumns:          c.MaxColumns,
		EstimatedCardHeight: c.EstimatedCardHeight,
	}
}

// SourceConfig names the default photo source.
type SourceConfig struct {
	URI      string `toml:"uri"`
	PageSize int    `toml:"page_size"`
}

// CacheConfig selects the layout cache backend.
type CacheConfig struct {
	Backend       string   `toml:"backend"`
	Dir           string   `toml:"dir"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	TTL           Duration `toml:"ttl"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string  `toml:"addr"`
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

// LogConfig configures logging and optional file rotation.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Duration is a time.Duration written as a Go duration string ("90m").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	mc := masonry.DefaultConfig()
	return Config{
		Layout: LayoutConfig{
			MinColumnWidth:      mc.MinColumnWidth,
			MaxColumns:          mc.MaxColumns,
			EstimatedCardHeight: mc.EstimatedCardHeight,
			Buffer:              viewport.DefaultBuffer,
			BoundaryThreshold:   viewport.DefaultThreshold,
		},
		Source: SourceConfig{
			PageSize: source.DefaultPageSize,
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			TTL:     Duration{cache.TTLLayout},
		},
		Server: ServerConfig{
			Addr:      ":8080",
			RateLimit: 20,
			RateBurst: 40,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "masonry", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "masonry", "config.toml"), nil
}

// Load reads the config file at path over the defaults. A missing file is
// not an error. An empty path means DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Layout.Masonry().Validate(); err != nil {
		return err
	}
	if c.Layout.Buffer < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "layout.buffer must be >= 0, got %d", c.Layout.Buffer)
	}
	if err := viewport.ValidateThreshold(c.Layout.BoundaryThreshold); err != nil {
		return err
	}

	if c.Source.URI != "" {
		if err := errors.ValidateSourceURI(c.Source.URI); err != nil {
			return err
		}
	}
	if c.Source.PageSize < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "source.page_size must be >= 1, got %d", c.Source.PageSize)
	}

	if !slices.Contains([]string{CacheFile, CacheRedis, CacheNone}, c.Cache.Backend) {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheRedis && c.Cache.RedisAddr == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis backend")
	}
	if c.Cache.TTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.ttl must be >= 0, got %v", c.Cache.TTL.Duration)
	}

	if c.Server.RateLimit < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.rate_limit must be >= 0, got %v", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.rate_burst must be >= 1 when rate limiting, got %d", c.Server.RateBurst)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "log.level")
	}
	return nil
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
