// Package config provides YAML configuration parsing for StatusFeed.
//
// This package enables running StatusFeed as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Team Status
//	port: 8080
//	identity_header: X-Forwarded-User
//
//	history_cap: 10
//	feed_cap: 50
//	search_cache_size: 256
//
//	persistence:
//	  driver: sqlite
//	  path: ${STATUSFEED_DATA:-/var/lib/statusfeed}/state.db
//	  flush_interval: 5s
//
//	log:
//	  level: info
//	  format: json
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = 8080
	defaultHistoryCap      = 10
	defaultFeedCap         = 50
	defaultSearchCacheSize = 256
	defaultFlushInterval   = 5 * time.Second

	// minFlushInterval keeps a misconfigured flush from rewriting the
	// snapshot in a tight loop.
	minFlushInterval = 100 * time.Millisecond
)

// Persistence driver names.
const (
	DriverNone   = "none"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config is the root configuration structure for StatusFeed.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "StatusFeed" if not set.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// IdentityHeader names the request header carrying the caller identity.
	// Defaults to X-Identity.
	IdentityHeader string `yaml:"identity_header"`

	// HistoryCap is the number of records kept per identity. Defaults to 10.
	HistoryCap int `yaml:"history_cap"`

	// FeedCap is the number of entries kept in the global feed. Defaults to 50.
	FeedCap int `yaml:"feed_cap"`

	// SearchCacheSize is the number of cached search results.
	// Defaults to 256; an explicit 0 disables the cache.
	SearchCacheSize *int `yaml:"search_cache_size"`

	Persistence PersistenceConfig `yaml:"persistence"`

	Log LogConfig `yaml:"log"`
}

// PersistenceConfig selects where snapshots are kept.
type PersistenceConfig struct {
	// Driver is "none", "file" or "sqlite". Defaults to "none".
	Driver string `yaml:"driver"`

	// Path is the snapshot file or SQLite database. Required unless the
	// driver is "none". For the file driver a ".cbor" extension selects
	// CBOR encoding, anything else JSON.
	// Supports environment variable substitution.
	Path string `yaml:"path"`

	// FlushInterval is how often a changed store is saved. Defaults to 5s.
	FlushInterval Duration `yaml:"flush_interval"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	// Level is debug, info, warn or error. Defaults to info.
	Level string `yaml:"level"`

	// Format is json or text. Defaults to json.
	Format string `yaml:"format"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
// Group 1 is the name, group 2 the ":-default" suffix, group 3 the default.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		if hasDefault {
			return submatches[3]
		}
		firstErr = fmt.Errorf("environment variable %q is not set", varName)
		return match
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applies defaults and validates.
//
// Environment variables are expanded in Title, IdentityHeader and
// Persistence.Path.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.HistoryCap == 0 {
		c.HistoryCap = defaultHistoryCap
	}
	if c.FeedCap == 0 {
		c.FeedCap = defaultFeedCap
	}
	if c.SearchCacheSize == nil {
		n := defaultSearchCacheSize
		c.SearchCacheSize = &n
	}
	if c.Persistence.Driver == "" {
		c.Persistence.Driver = DriverNone
	}
	if c.Persistence.FlushInterval == 0 {
		c.Persistence.FlushInterval = Duration(defaultFlushInterval)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	var err error

	if c.Title, err = expandEnvVars(c.Title); err != nil {
		return fmt.Errorf("title: %w", err)
	}
	if c.IdentityHeader, err = expandEnvVars(c.IdentityHeader); err != nil {
		return fmt.Errorf("identity_header: %w", err)
	}
	if strings.ContainsAny(c.IdentityHeader, " \t:") {
		return fmt.Errorf("identity_header: invalid header name %q", c.IdentityHeader)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.HistoryCap < 0 {
		return fmt.Errorf("history_cap must be positive, got %d", c.HistoryCap)
	}
	if c.FeedCap < 0 {
		return fmt.Errorf("feed_cap must be positive, got %d", c.FeedCap)
	}
	if *c.SearchCacheSize < 0 {
		return fmt.Errorf("search_cache_size cannot be negative, got %d", *c.SearchCacheSize)
	}

	p := &c.Persistence
	switch p.Driver {
	case DriverNone:
	case DriverFile, DriverSQLite:
		if p.Path, err = expandEnvVars(p.Path); err != nil {
			return fmt.Errorf("persistence.path: %w", err)
		}
		if strings.TrimSpace(p.Path) == "" {
			return fmt.Errorf("persistence.path is required for driver %q", p.Driver)
		}
	default:
		return fmt.Errorf("persistence.driver must be none, file or sqlite, got %q", p.Driver)
	}
	if p.FlushInterval.Duration() < minFlushInterval {
		return fmt.Errorf("persistence.flush_interval must be at least %s, got %s",
			minFlushInterval, p.FlushInterval.Duration())
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}

	return nil
}

// SlogLevel maps Level onto a [slog.Level].
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, err
	}
	return level, nil
}
