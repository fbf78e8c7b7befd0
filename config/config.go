// Package config provides YAML configuration parsing for LotBoard.
//
// This package enables running LotBoard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	poll_interval: 2s
//	server_url: http://localhost:8080
//
//	database:
//	  driver: sqlite
//	  dsn: db/sensors.db
//
//	lots:
//	  - id: 1
//	    name: Lot A
//	    location: Main Building
//	    capacity: 20
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval.
// This prevents accidental DoS of the server with overly aggressive polling.
const minPollInterval = 1 * time.Second

// Config is the root configuration structure for LotBoard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML, or [Default] for the
// built-in configuration used when no file is given.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080; the PORT environment
	// variable, when set, takes precedence over both the default and the
	// file value.
	Port int `yaml:"port"`

	// PollInterval is the time between client polling cycles.
	// Accepts duration strings like "2s", "500ms". Defaults to 2s.
	PollInterval Duration `yaml:"poll_interval"`

	// ServerURL is the tracker base URL targeted by the watch and simulate
	// commands. Supports environment variable substitution: ${VAR} or
	// ${VAR:-default}. Defaults to http://localhost:<port>.
	ServerURL string `yaml:"server_url"`

	// Database configures the record store.
	Database DatabaseConfig `yaml:"database"`

	// Lots seeds the client model's parking lots.
	Lots []LotConfig `yaml:"lots"`
}

// DatabaseConfig configures the record store connection.
type DatabaseConfig struct {
	// Driver selects the dialect: "sqlite" (default), "postgres" or "mysql".
	Driver string `yaml:"driver"`

	// DSN is the driver-specific connection string; for sqlite, the database
	// file path. Supports environment variable substitution.
	DSN string `yaml:"dsn"`

	// Connection pool settings. Zero values keep the driver defaults.
	MaxIdleConns    int `yaml:"max_idle_conns"`
	MaxOpenConns    int `yaml:"max_open_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"` // seconds
}

// LotConfig seeds one parking lot.
type LotConfig struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Capacity int    `yaml:"capacity"`
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

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Default returns the built-in configuration used when no file is given:
// sqlite storage under db/sensors.db, a 2-second poll, and the three
// historical lots.
func Default() *Config {
	cfg := &Config{
		Port:         8080,
		PollInterval: Duration(2 * time.Second),
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "db/sensors.db",
		},
		Lots: []LotConfig{
			{ID: 1, Name: "Lot A", Location: "Main Building", Capacity: 20},
			{ID: 2, Name: "Lot B", Location: "Shopping Center", Capacity: 30},
			{ID: 3, Name: "Lot C", Location: "Office Complex", Capacity: 15},
		},
	}
	applyEnvOverrides(cfg)
	cfg.ServerURL = defaultServerURL(cfg.Port)
	return cfg
}

// Load reads and parses a YAML configuration file.
//
// An empty path yields [Default]. Environment variables are expanded and
// defaults applied before validation.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in ServerURL and Database.DSN. Defaults
// are applied for Port (8080, PORT env winning), PollInterval (2s), the
// database driver (sqlite) and DSN (db/sensors.db).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	applyEnvOverrides(&cfg)

	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(2 * time.Second)
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "db/sensors.db"
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = defaultServerURL(cfg.Port)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies the PORT environment variable when set.
func applyEnvOverrides(cfg *Config) {
	if raw, ok := os.LookupEnv("PORT"); ok {
		if port, err := strconv.Atoi(raw); err == nil && port >= 1 && port <= 65535 {
			cfg.Port = port
		}
	}
}

func defaultServerURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}

	expanded, err := expandEnvVars(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	c.ServerURL = expanded

	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database driver must be sqlite, postgres or mysql, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required for driver %q", c.Database.Driver)
	}
	expanded, err = expandEnvVars(c.Database.DSN)
	if err != nil {
		return fmt.Errorf("database dsn: %w", err)
	}
	c.Database.DSN = expanded

	seen := make(map[int]struct{}, len(c.Lots))
	for i, lot := range c.Lots {
		if lot.ID <= 0 {
			return fmt.Errorf("lots[%d]: id must be positive", i)
		}
		if _, dup := seen[lot.ID]; dup {
			return fmt.Errorf("lots[%d]: duplicate lot id %d", i, lot.ID)
		}
		seen[lot.ID] = struct{}{}
		if lot.Name == "" {
			return fmt.Errorf("lots[%d]: name is required", i)
		}
		if lot.Capacity < 0 {
			return fmt.Errorf("lots[%d] (%s): capacity cannot be negative", i, lot.Name)
		}
	}

	return nil
}
