package config

import (
	"time"
)

// Config is the root settings structure
type Config struct {
	Version    int              `yaml:"version"`
	Database   DatabaseConfig   `yaml:"database"`
	Paths      PathsConfig      `yaml:"paths"`
	Generation GenerationConfig `yaml:"generation"`
	Training   TrainingConfig   `yaml:"training"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig selects the relational store.
// Driver is "sqlite" (Path) or "mysql" (DSN).
type DatabaseConfig struct {
	Driver      string    `yaml:"driver"`
	Path        string    `yaml:"path"`
	DSN         string    `yaml:"dsn,omitempty"`
	BusyTimeout *Duration `yaml:"busy_timeout,omitempty"`
}

// PathsConfig holds artifact directories
type PathsConfig struct {
	RawDir       string `yaml:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	ModelDir     string `yaml:"model_dir"`
	ReportDir    string `yaml:"report_dir"`
}

// GenerationConfig drives the synthesizer and noise injector
type GenerationConfig struct {
	NumAssets   int    `yaml:"num_assets"`
	Seed        int64  `yaml:"seed"`
	MaxAttempts int    `yaml:"max_attempts"`
	Catalog     string `yaml:"catalog,omitempty"` // empty = built-in catalog
	NoiseConfig string `yaml:"noise_config"`
}

// TrainingConfig points at the per-target trainer configs
type TrainingConfig struct {
	InventoryConfig string `yaml:"inventory_config"`
	IPAMConfig      string `yaml:"ipam_config"`
	SkipReport      bool   `yaml:"skip_report"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
