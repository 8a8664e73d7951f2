// Package config provides settings management for the lightspeed pipeline.
//
// Settings only say where things live and how runs are seeded; the catalog,
// noise rates and trainer parameters have their own files referenced from here.
//
// Config file locations (priority order):
//  1. $LIGHTSPEED_CONFIG
//  2. ./lightspeed.yaml
//  3. $XDG_CONFIG_HOME/lightspeed/config.yaml
//  4. ~/.config/lightspeed/config.yaml
//  5. /etc/lightspeed/config.yaml
//
// A .env file in the working directory is loaded first, and LIGHTSPEED_*
// variables override file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvDBDriver = "LIGHTSPEED_DB_DRIVER"
	EnvDBPath   = "LIGHTSPEED_DB_PATH"
	EnvDBDSN    = "LIGHTSPEED_DB_DSN"
	EnvLogLevel = "LIGHTSPEED_LOG_LEVEL"
	EnvSeed     = "LIGHTSPEED_SEED"
)

// Drivers supported by the relational store
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path != "" {
		return LoadFromPath(path)
	}

	if err := loadDotEnv(); err != nil {
		return nil, "", err
	}
	cfg := DefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, "", nil
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	if err := loadDotEnv(); err != nil {
		return nil, path, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, path, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// loadDotEnv loads ./.env into the environment. A missing file is not an error.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns the settings used when no file is found
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/sqlite/lightspeed_assets.db"
	}
	if c.Database.BusyTimeout == nil {
		d := Duration(5 * time.Second)
		c.Database.BusyTimeout = &d
	}

	if c.Paths.RawDir == "" {
		c.Paths.RawDir = "data/raw"
	}
	if c.Paths.ProcessedDir == "" {
		c.Paths.ProcessedDir = "data/processed"
	}
	if c.Paths.ModelDir == "" {
		c.Paths.ModelDir = "models"
	}
	if c.Paths.ReportDir == "" {
		c.Paths.ReportDir = "reports"
	}

	if c.Generation.NumAssets == 0 {
		c.Generation.NumAssets = 11246
	}
	if c.Generation.Seed == 0 {
		c.Generation.Seed = 42
	}
	if c.Generation.MaxAttempts == 0 {
		c.Generation.MaxAttempts = 100000
	}
	if c.Generation.NoiseConfig == "" {
		c.Generation.NoiseConfig = "config/generation_params.json"
	}

	if c.Training.InventoryConfig == "" {
		c.Training.InventoryConfig = "config/inventory_full.json"
	}
	if c.Training.IPAMConfig == "" {
		c.Training.IPAMConfig = "config/ipam_full.json"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// applyEnv overlays LIGHTSPEED_* variables
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDBDriver); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvSeed); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvSeed, err)
		}
		c.Generation.Seed = seed
	}
	return nil
}

// Validate checks settings that would otherwise fail deep inside a stage
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			result = multierror.Append(result, fmt.Errorf("database.path is required for sqlite"))
		}
	case DriverMySQL:
		if c.Database.DSN == "" {
			result = multierror.Append(result, fmt.Errorf("database.dsn is required for mysql"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}

	if c.Generation.NumAssets <= 0 {
		result = multierror.Append(result, fmt.Errorf("generation.num_assets must be positive"))
	}
	if c.Generation.MaxAttempts <= 0 {
		result = multierror.Append(result, fmt.Errorf("generation.max_attempts must be positive"))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		result = multierror.Append(result, fmt.Errorf("unsupported log format %q", c.Logging.Format))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DataSource returns the driver name and connection string for the store
func (c *Config) DataSource() (string, string) {
	if c.Database.Driver == DriverMySQL {
		return DriverMySQL, c.Database.DSN
	}
	return DriverSQLite, c.Database.Path
}

// Summary returns a one-line human-readable config summary
func (c *Config) Summary() string {
	driver, source := c.DataSource()
	return fmt.Sprintf("db=%s:%s raw=%s processed=%s models=%s reports=%s assets=%d seed=%d",
		driver, source, c.Paths.RawDir, c.Paths.ProcessedDir, c.Paths.ModelDir, c.Paths.ReportDir,
		c.Generation.NumAssets, c.Generation.Seed)
}
