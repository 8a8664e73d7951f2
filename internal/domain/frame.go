package domain

import (
	"fmt"
	"sort"
)

// Frame is a string table with ordered columns. Empty cells are nulls.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// NewFrame creates an empty frame with the given columns
func NewFrame(columns ...string) *Frame {
	return &Frame{Columns: append([]string{}, columns...)}
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Append adds a row, which must match the column count
func (f *Frame) Append(row []string) error {
	if len(row) != len(f.Columns) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(row), len(f.Columns))
	}
	f.Rows = append(f.Rows, row)
	return nil
}

// Index returns the position of a column, or -1
func (f *Frame) Index(column string) int {
	for i, c := range f.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// MissingColumns returns the requested columns absent from the frame, sorted
func (f *Frame) MissingColumns(columns ...string) []string {
	var missing []string
	for _, c := range columns {
		if f.Index(c) < 0 {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return missing
}

// Column returns a copy of one column's values
func (f *Frame) Column(column string) ([]string, error) {
	idx := f.Index(column)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", column)
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Select projects the frame onto the given columns in the given order
func (f *Frame) Select(columns ...string) (*Frame, error) {
	if missing := f.MissingColumns(columns...); len(missing) > 0 {
		return nil, fmt.Errorf("columns not found: %v", missing)
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = f.Index(c)
	}

	out := NewFrame(columns...)
	out.Rows = make([][]string, len(f.Rows))
	for r, row := range f.Rows {
		projected := make([]string, len(idx))
		for i, j := range idx {
			projected[i] = row[j]
		}
		out.Rows[r] = projected
	}
	return out, nil
}

// Drop returns the frame without the given column
func (f *Frame) Drop(column string) (*Frame, error) {
	if f.Index(column) < 0 {
		return nil, fmt.Errorf("column %q not found", column)
	}
	keep := make([]string, 0, len(f.Columns)-1)
	for _, c := range f.Columns {
		if c != column {
			keep = append(keep, c)
		}
	}
	return f.Select(keep...)
}
