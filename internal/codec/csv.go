package codec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"lightspeed/internal/domain"
)

// CSVCodec handles header-first CSV import/export
type CSVCodec struct{}

// NewCSVCodec creates a new CSV codec
func NewCSVCodec() *CSVCodec {
	return &CSVCodec{}
}

// Format returns the codec format identifier
func (c *CSVCodec) Format() string {
	return "csv"
}

// Parse imports a frame from CSV. The first record is the header.
func (c *CSVCodec) Parse(r io.Reader) (*domain.Frame, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty csv: no header")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV header: %w", err)
	}

	frame := domain.NewFrame(header...)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		if err := frame.Append(record); err != nil {
			return nil, fmt.Errorf("line %d: %w", frame.Len()+2, err)
		}
	}
	return frame, nil
}

// Export writes the header followed by every row
func (c *CSVCodec) Export(frame *domain.Frame, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(frame.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writer.WriteAll(frame.Rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
