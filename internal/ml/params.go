package ml

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// MaxFeatures selects how many columns each split considers
type MaxFeatures struct {
	Kind     string  // "sqrt", "log2", "all", "count" or "fraction"
	Count    int     // when Kind is "count"
	Fraction float64 // when Kind is "fraction"
}

// Max feature kinds
const (
	MaxFeaturesSqrt     = "sqrt"
	MaxFeaturesLog2     = "log2"
	MaxFeaturesAll      = "all"
	MaxFeaturesCount    = "count"
	MaxFeaturesFraction = "fraction"
)

// UnmarshalJSON accepts "sqrt", "log2", null, an integer count or a fractional number
func (m *MaxFeatures) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*m = MaxFeatures{Kind: MaxFeaturesAll}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case MaxFeaturesSqrt, "auto":
			*m = MaxFeatures{Kind: MaxFeaturesSqrt}
		case MaxFeaturesLog2:
			*m = MaxFeatures{Kind: MaxFeaturesLog2}
		default:
			return fmt.Errorf("unsupported max_features %q", s)
		}
		return nil
	}

	if !bytes.ContainsAny(data, ".eE") {
		n, err := strconv.Atoi(string(data))
		if err != nil {
			return fmt.Errorf("parse max_features: %w", err)
		}
		*m = MaxFeatures{Kind: MaxFeaturesCount, Count: n}
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse max_features: %w", err)
	}
	*m = MaxFeatures{Kind: MaxFeaturesFraction, Fraction: f}
	return nil
}

// MarshalJSON writes the same forms UnmarshalJSON reads
func (m MaxFeatures) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case MaxFeaturesAll:
		return []byte("null"), nil
	case MaxFeaturesCount:
		return []byte(strconv.Itoa(m.Count)), nil
	case MaxFeaturesFraction:
		s := strconv.FormatFloat(m.Fraction, 'f', -1, 64)
		if !bytes.ContainsAny([]byte(s), ".eE") {
			s += ".0"
		}
		return []byte(s), nil
	case "":
		return json.Marshal(MaxFeaturesSqrt)
	}
	return json.Marshal(m.Kind)
}

// Resolve returns the number of columns to draw out of p
func (m MaxFeatures) Resolve(p int) int {
	var k int
	switch m.Kind {
	case MaxFeaturesAll:
		k = p
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(p)))
	case MaxFeaturesCount:
		k = m.Count
	case MaxFeaturesFraction:
		k = int(m.Fraction * float64(p))
	default:
		k = int(math.Sqrt(float64(p)))
	}
	if k < 1 {
		k = 1
	}
	if k > p {
		k = p
	}
	return k
}

// Params are the forest hyperparameters
type Params struct {
	NEstimators     int         `json:"n_estimators"`
	MaxDepth        *int        `json:"max_depth"`
	MinSamplesSplit int         `json:"min_samples_split"`
	MinSamplesLeaf  int         `json:"min_samples_leaf"`
	MaxFeatures     MaxFeatures `json:"max_features"`
	Bootstrap       *bool       `json:"bootstrap,omitempty"`
	ClassWeight     string      `json:"class_weight,omitempty"` // "" or "balanced"
	RandomState     *int64      `json:"random_state,omitempty"`
	NJobs           int         `json:"n_jobs,omitempty"`
}

// DefaultRandomState seeds the forest when no random_state is given
const DefaultRandomState = 42

// DefaultParams returns the library defaults
func DefaultParams() Params {
	p := Params{}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills unset fields
func (p *Params) ApplyDefaults() {
	if p.NEstimators == 0 {
		p.NEstimators = 100
	}
	if p.MinSamplesSplit == 0 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf == 0 {
		p.MinSamplesLeaf = 1
	}
	if p.MaxFeatures.Kind == "" {
		p.MaxFeatures.Kind = MaxFeaturesSqrt
	}
	if p.Bootstrap == nil {
		b := true
		p.Bootstrap = &b
	}
	if p.RandomState == nil {
		s := int64(DefaultRandomState)
		p.RandomState = &s
	}
}

// Validate rejects parameters the forest cannot honor
func (p Params) Validate() error {
	switch {
	case p.NEstimators < 1:
		return fmt.Errorf("n_estimators must be at least 1, got %d", p.NEstimators)
	case p.MaxDepth != nil && *p.MaxDepth < 1:
		return fmt.Errorf("max_depth must be at least 1, got %d", *p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return fmt.Errorf("min_samples_split must be at least 2, got %d", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return fmt.Errorf("min_samples_leaf must be at least 1, got %d", p.MinSamplesLeaf)
	case p.MaxFeatures.Kind == MaxFeaturesCount && p.MaxFeatures.Count < 1:
		return fmt.Errorf("max_features must be at least 1, got %d", p.MaxFeatures.Count)
	case p.MaxFeatures.Kind == MaxFeaturesFraction && (p.MaxFeatures.Fraction <= 0 || p.MaxFeatures.Fraction > 1):
		return fmt.Errorf("max_features fraction must be in (0, 1], got %v", p.MaxFeatures.Fraction)
	case p.ClassWeight != "" && p.ClassWeight != "balanced":
		return fmt.Errorf("unsupported class_weight %q", p.ClassWeight)
	}
	return nil
}
