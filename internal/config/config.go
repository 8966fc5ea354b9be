// Package config provides YAML-based configuration loading for Fleetyard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Fleetyard configuration, loaded from fleetyard.yaml.
type Config struct {
	Site      string           `yaml:"site"`
	Database  DatabaseConfig   `yaml:"database"`
	Server    ServerConfig     `yaml:"server"`
	Engine    EngineConfig     `yaml:"engine"`
	Analytics AnalyticsConfig  `yaml:"analytics"`
	Logging   LoggingConfig    `yaml:"logging"`
	Vehicles  []VehicleConfig  `yaml:"vehicles"`
	Locations []LocationConfig `yaml:"locations"`
	Operators []OperatorConfig `yaml:"operators"`
}

// DatabaseConfig holds connection settings for the cycle store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // mysql or sqlite
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Name            string `yaml:"name"` // database name, or file path for sqlite
	LockWaitSeconds int    `yaml:"lock_wait_seconds"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

// EngineConfig tunes the cycle engine.
type EngineConfig struct {
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// AnalyticsConfig tunes the compliance analytics.
type AnalyticsConfig struct {
	DefaultDays      int    `yaml:"default_days"`
	SnapshotSchedule string `yaml:"snapshot_schedule"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// VehicleConfig seeds one vehicle into the registry.
type VehicleConfig struct {
	ID       uint   `yaml:"id"`
	Code     string `yaml:"code"`
	Status   string `yaml:"status"`
	Location uint   `yaml:"location"`
}

// LocationConfig seeds one location.
type LocationConfig struct {
	ID   uint   `yaml:"id"`
	Name string `yaml:"name"`
}

// OperatorConfig seeds one operator display name.
type OperatorConfig struct {
	ID   uint   `yaml:"id"`
	Name string `yaml:"name"`
}

// Environment variables that override file settings.
const (
	EnvDBPassword = "FLEETYARD_DB_PASSWORD"
	EnvDBHost     = "FLEETYARD_DB_HOST"
	EnvJWTSecret  = "FLEETYARD_JWT_SECRET"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Load reads a YAML config file from path and returns a validated Config.
// A .env file next to the working directory, if present, is loaded first so
// secrets can stay out of the YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays secrets and hosts from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDBPassword); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv(EnvDBHost); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Server.JWTSecret = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Name == "" && c.Site != "" {
		name := "fleetyard_" + strings.ReplaceAll(c.Site, "-", "_")
		if c.Database.Driver == "sqlite" {
			name += ".db"
		}
		c.Database.Name = name
	}
	if c.Database.LockWaitSeconds == 0 {
		c.Database.LockWaitSeconds = 5
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Engine.LockTimeout == 0 {
		c.Engine.LockTimeout = 3 * time.Second
	}
	if c.Analytics.DefaultDays == 0 {
		c.Analytics.DefaultDays = 7
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	for i := range c.Vehicles {
		if c.Vehicles[i].Status == "" {
			c.Vehicles[i].Status = "operational"
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Site == "" {
		errs = append(errs, "site is required")
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}
	if c.Engine.LockTimeout < 0 {
		errs = append(errs, "engine.lock_timeout must not be negative")
	}
	if c.Analytics.DefaultDays < 1 {
		errs = append(errs, "analytics.default_days must be at least 1")
	}
	if c.Analytics.SnapshotSchedule != "" {
		if _, err := scheduleParser.Parse(c.Analytics.SnapshotSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("analytics.snapshot_schedule %q: %v", c.Analytics.SnapshotSchedule, err))
		}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}

	locations := make(map[uint]bool, len(c.Locations))
	for i, l := range c.Locations {
		if l.ID == 0 {
			errs = append(errs, fmt.Sprintf("locations[%d].id is required", i))
		}
		if l.Name == "" {
			errs = append(errs, fmt.Sprintf("locations[%d].name is required", i))
		}
		locations[l.ID] = true
	}

	ids := make(map[uint]bool, len(c.Vehicles))
	codes := make(map[string]bool, len(c.Vehicles))
	for i, v := range c.Vehicles {
		if v.ID == 0 {
			errs = append(errs, fmt.Sprintf("vehicles[%d].id is required", i))
		} else if ids[v.ID] {
			errs = append(errs, fmt.Sprintf("vehicles[%d].id %d is duplicated", i, v.ID))
		}
		ids[v.ID] = true
		if v.Code == "" {
			errs = append(errs, fmt.Sprintf("vehicles[%d].code is required", i))
		} else if codes[v.Code] {
			errs = append(errs, fmt.Sprintf("vehicles[%d].code %q is duplicated", i, v.Code))
		}
		codes[v.Code] = true
		switch v.Status {
		case "operational", "blocked", "breakdown":
		default:
			errs = append(errs, fmt.Sprintf("vehicles[%d].status %q is invalid", i, v.Status))
		}
		if v.Location != 0 && !locations[v.Location] {
			errs = append(errs, fmt.Sprintf("vehicles[%d].location %d is not declared", i, v.Location))
		}
	}

	for i, o := range c.Operators {
		if o.ID == 0 {
			errs = append(errs, fmt.Sprintf("operators[%d].id is required", i))
		}
		if o.Name == "" {
			errs = append(errs, fmt.Sprintf("operators[%d].name is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
