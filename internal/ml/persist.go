package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"lightspeed/internal/codec"
)

// SaveModel writes the forest as xz-compressed JSON
func SaveModel(path string, f *Forest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	defer file.Close()

	zw, err := xz.NewWriter(file)
	if err != nil {
		return fmt.Errorf("create xz writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(f); err != nil {
		zw.Close()
		return fmt.Errorf("encode model: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush model: %w", err)
	}
	return file.Close()
}

// LoadModel reads a forest written by SaveModel
func LoadModel(path string) (*Forest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer file.Close()

	zr, err := xz.ReaderConfig{SingleStream: true}.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("create xz reader: %w", err)
	}
	var f Forest
	if err := json.NewDecoder(zr).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(f.Trees) == 0 || len(f.FeatureNames) == 0 {
		return nil, fmt.Errorf("decode model: %s holds no fitted forest", path)
	}
	return &f, nil
}

// SaveEncoder writes the encoder's feature and column lists as JSON
func SaveEncoder(path string, e *Encoder) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create encoder dir: %w", err)
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("encode encoder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write encoder: %w", err)
	}
	return nil
}

// LoadEncoder reads an encoder written by SaveEncoder
func LoadEncoder(path string) (*Encoder, error) {
	var e Encoder
	if err := codec.ReadJSON(path, &e); err != nil {
		return nil, fmt.Errorf("load encoder: %w", err)
	}
	if len(e.Columns) == 0 {
		return nil, fmt.Errorf("load encoder: %s has no columns", path)
	}
	return NewEncoder(e.Features, e.Columns), nil
}
