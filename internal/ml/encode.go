package ml

import (
	"fmt"
	"sort"

	"lightspeed/internal/domain"
)

// MissingValue replaces empty feature cells before encoding
const MissingValue = "missing"

// Matrix is a binary design matrix. Each row lists its active columns in ascending order.
type Matrix struct {
	NumCols int
	Rows    [][]int32
}

// Len returns the number of rows
func (m *Matrix) Len() int {
	return len(m.Rows)
}

// Has reports whether column col is set in row r
func (m *Matrix) Has(r int, col int32) bool {
	return hasColumn(m.Rows[r], col)
}

func hasColumn(row []int32, col int32) bool {
	i := sort.Search(len(row), func(i int) bool { return row[i] >= col })
	return i < len(row) && row[i] == col
}

// Encoder one-hot encodes categorical features into named columns {feature}_{value}.
// Columns are ordered by feature, then by sorted value.
type Encoder struct {
	Features []string `json:"features"`
	Columns  []string `json:"columns"`

	index map[string]int32
}

// FitEncoder learns the columns of the given features from a frame
func FitEncoder(frame *domain.Frame, features []string) (*Encoder, error) {
	if missing := frame.MissingColumns(features...); len(missing) > 0 {
		return nil, fmt.Errorf("features not in dataset: %v", missing)
	}

	var columns []string
	seen := make(map[string]bool)
	for _, f := range features {
		values, _ := frame.Column(f)
		distinct := make(map[string]bool)
		for _, v := range values {
			distinct[FillMissing(v)] = true
		}
		sorted := make([]string, 0, len(distinct))
		for v := range distinct {
			sorted = append(sorted, v)
		}
		sort.Strings(sorted)
		for _, v := range sorted {
			name := ColumnName(f, v)
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
		}
	}
	return NewEncoder(features, columns), nil
}

// NewEncoder rebuilds an encoder from a saved column list
func NewEncoder(features, columns []string) *Encoder {
	e := &Encoder{
		Features: append([]string{}, features...),
		Columns:  append([]string{}, columns...),
	}
	e.buildIndex()
	return e
}

func (e *Encoder) buildIndex() {
	e.index = make(map[string]int32, len(e.Columns))
	for i, c := range e.Columns {
		e.index[c] = int32(i)
	}
}

// Transform encodes a frame onto the encoder's columns. Values the encoder has
// never seen produce no active column; columns the frame never produces stay zero.
func (e *Encoder) Transform(frame *domain.Frame) (*Matrix, error) {
	if e.index == nil {
		e.buildIndex()
	}
	if missing := frame.MissingColumns(e.Features...); len(missing) > 0 {
		return nil, fmt.Errorf("features not in dataset: %v", missing)
	}

	idx := make([]int, len(e.Features))
	for i, f := range e.Features {
		idx[i] = frame.Index(f)
	}

	m := &Matrix{NumCols: len(e.Columns), Rows: make([][]int32, len(frame.Rows))}
	for r, row := range frame.Rows {
		active := make([]int32, 0, len(idx))
		for i, j := range idx {
			if col, ok := e.index[ColumnName(e.Features[i], FillMissing(row[j]))]; ok {
				active = append(active, col)
			}
		}
		sort.Slice(active, func(a, b int) bool { return active[a] < active[b] })
		m.Rows[r] = dedupe(active)
	}
	return m, nil
}

// ColumnName names the one-hot column of a feature value
func ColumnName(feature, value string) string {
	return feature + "_" + value
}

// FillMissing maps the empty cell to MissingValue
func FillMissing(v string) string {
	if v == "" {
		return MissingValue
	}
	return v
}

func dedupe(sorted []int32) []int32 {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
