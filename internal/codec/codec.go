// Package codec reads and writes the pipeline's tabular and JSON artifacts.
package codec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"lightspeed/internal/domain"
)

// Importer interface for importing frames from various formats
type Importer interface {
	Parse(r io.Reader) (*domain.Frame, error)
	Format() string
}

// Exporter interface for exporting frames to various formats
type Exporter interface {
	Export(frame *domain.Frame, w io.Writer) error
	Format() string
}

// ReadFile parses the file at path with the given importer
func ReadFile(path string, imp Importer) (*domain.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	frame, err := imp.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return frame, nil
}

// WriteFile exports the frame to path, creating parent directories
func WriteFile(path string, frame *domain.Frame, exp Exporter) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := exp.Export(frame, f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
