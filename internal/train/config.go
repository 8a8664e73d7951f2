package train

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"lightspeed/internal/ml"
)

// Config describes one training run
type Config struct {
	InputCSV      string    `json:"input_csv"`
	Features      []string  `json:"features"`
	Label         string    `json:"label"`
	TestSize      float64   `json:"test_size"`
	RandomState   *int64    `json:"random_state"`
	ModelParams   ml.Params `json:"model_params"`
	OutputModel   string    `json:"output_model"`
	OutputEncoder string    `json:"output_encoder"`
	OutputReport  string    `json:"output_report,omitempty"`
	OutputPlot    string    `json:"output_plot,omitempty"`
	TopNFeatures  int       `json:"top_n_features"`
}

// Defaults
const (
	DefaultTestSize      = 0.2
	DefaultRandomState   = 42
	DefaultTopNFeatures  = 20
	DefaultOutputModel   = "models/model.json.xz"
	DefaultOutputEncoder = "models/encoder.json"
)

// legacyParamKeys are forest parameters accepted at the top level when model_params is absent
var legacyParamKeys = []string{"n_estimators", "max_depth", "min_samples_split", "min_samples_leaf"}

// LoadConfig reads a training config file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read train config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parse train config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a training config. Forest parameters come from model_params,
// or from top-level legacy keys when model_params is absent.
func ParseConfig(data []byte) (*Config, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if !gjson.GetBytes(data, "model_params").Exists() {
		legacy := make(map[string]json.RawMessage)
		for _, key := range legacyParamKeys {
			if v := gjson.GetBytes(data, key); v.Exists() {
				legacy[key] = json.RawMessage(v.Raw)
			}
		}
		if len(legacy) > 0 {
			raw, err := json.Marshal(legacy)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(raw, &cfg.ModelParams); err != nil {
				return nil, fmt.Errorf("legacy model params: %w", err)
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TestSize == 0 {
		c.TestSize = DefaultTestSize
	}
	if c.RandomState == nil {
		s := int64(DefaultRandomState)
		c.RandomState = &s
	}
	if c.OutputModel == "" {
		c.OutputModel = DefaultOutputModel
	}
	if c.OutputEncoder == "" {
		c.OutputEncoder = DefaultOutputEncoder
	}
	if c.TopNFeatures == 0 {
		c.TopNFeatures = DefaultTopNFeatures
	}
	c.ModelParams.ApplyDefaults()
}

// Validate checks the fields a run cannot do without
func (c *Config) Validate() error {
	switch {
	case c.InputCSV == "":
		return fmt.Errorf("input_csv is required")
	case c.Label == "":
		return fmt.Errorf("label is required")
	case c.TestSize <= 0 || c.TestSize >= 1:
		return fmt.Errorf("test_size must be in (0, 1), got %v", c.TestSize)
	case c.TopNFeatures < 1:
		return fmt.Errorf("top_n_features must be at least 1, got %d", c.TopNFeatures)
	}
	for _, f := range c.Features {
		if f == c.Label {
			return fmt.Errorf("label %q is also listed as a feature", c.Label)
		}
	}
	if err := c.ModelParams.Validate(); err != nil {
		return fmt.Errorf("model_params: %w", err)
	}
	return nil
}
