// Package ml implements the random forest classifier used to predict missing records.
//
// Inputs are one-hot encoded categorical features, so every column is binary and a
// split is "column set or not". Trees are CART trees grown on bootstrap samples with
// Gini impurity; the forest averages their class probabilities.
package ml

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Forest is a fitted random forest classifier
type Forest struct {
	Params       Params    `json:"params"`
	Target       string    `json:"target,omitempty"`
	Classes      []string  `json:"classes"`
	FeatureNames []string  `json:"feature_names"`
	Trees        []*Tree   `json:"trees"`
	Importances  []float64 `json:"feature_importances"`
}

// NewForest creates an unfitted forest
func NewForest(p Params) (*Forest, error) {
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Forest{Params: p}, nil
}

// Fit grows the trees. y holds class indexes into classes; featureNames names the matrix columns.
func (f *Forest) Fit(ctx context.Context, x *Matrix, y []int, classes, featureNames []string) error {
	if x.Len() == 0 {
		return errors.New("fit: no training rows")
	}
	if x.Len() != len(y) {
		return fmt.Errorf("fit: %d rows but %d labels", x.Len(), len(y))
	}
	if len(featureNames) != x.NumCols {
		return fmt.Errorf("fit: %d columns but %d feature names", x.NumCols, len(featureNames))
	}

	f.Classes = append([]string{}, classes...)
	f.FeatureNames = append([]string{}, featureNames...)
	classWeight := f.classWeights(y)

	master := rand.New(rand.NewSource(*f.Params.RandomState))
	seeds := make([]int64, f.Params.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*Tree, f.Params.NEstimators)
	importances := make([][]float64, f.Params.NEstimators)

	g, gctx := errgroup.WithContext(ctx)
	jobs := f.Params.NJobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	g.SetLimit(jobs)

	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			trees[i], importances[i] = f.fitTree(x, y, classWeight, seeds[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	f.Trees = trees
	f.Importances = aggregateImportances(trees, importances, x.NumCols)
	return nil
}

// fitTree draws a bootstrap sample and grows one tree from it
func (f *Forest) fitTree(x *Matrix, y []int, classWeight []float64, seed int64) (*Tree, []float64) {
	rng := rand.New(rand.NewSource(seed))
	n := x.Len()

	w := make([]float64, n)
	if *f.Params.Bootstrap {
		for i := 0; i < n; i++ {
			w[rng.Intn(n)]++
		}
	} else {
		for i := range w {
			w[i] = 1
		}
	}

	rows := make([]int, 0, n)
	for i := range w {
		if w[i] == 0 {
			continue
		}
		w[i] *= classWeight[y[i]]
		rows = append(rows, i)
	}

	b := newTreeBuilder(x, y, w, len(f.Classes), f.Params, rng)
	return b.build(rows)
}

// classWeights returns per-class sample weights: all ones, or n/(k*count) when balanced
func (f *Forest) classWeights(y []int) []float64 {
	weights := make([]float64, len(f.Classes))
	for i := range weights {
		weights[i] = 1
	}
	if f.Params.ClassWeight != "balanced" {
		return weights
	}

	counts := make([]float64, len(f.Classes))
	for _, c := range y {
		counts[c]++
	}
	present := 0.0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}
	for i, c := range counts {
		if c > 0 {
			weights[i] = float64(len(y)) / (present * c)
		}
	}
	return weights
}

// aggregateImportances averages per-tree normalized impurity decreases over
// trees that split at least once, then normalizes the mean to sum to 1.
func aggregateImportances(trees []*Tree, perTree [][]float64, nCols int) []float64 {
	mean := make([]float64, nCols)
	used := 0
	for i, t := range trees {
		if len(t.Nodes) <= 1 {
			continue
		}
		imp := append([]float64{}, perTree[i]...)
		if s := floats.Sum(imp); s > 0 {
			floats.Scale(1/s, imp)
		}
		floats.Add(mean, imp)
		used++
	}
	if used == 0 {
		return mean
	}
	if s := floats.Sum(mean); s > 0 {
		floats.Scale(1/s, mean)
	}
	return mean
}

// PredictProba returns the mean class probabilities of every row
func (f *Forest) PredictProba(x *Matrix) ([][]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.New("predict: forest is not fitted")
	}
	if x.NumCols != len(f.FeatureNames) {
		return nil, fmt.Errorf("predict: %d columns, model expects %d", x.NumCols, len(f.FeatureNames))
	}

	proba := make([][]float64, x.Len())
	for r, row := range x.Rows {
		p := make([]float64, len(f.Classes))
		for _, t := range f.Trees {
			floats.Add(p, t.Leaf(row).Value)
		}
		floats.Scale(1/float64(len(f.Trees)), p)
		proba[r] = p
	}
	return proba, nil
}

// Predict returns the most probable class index of every row
func (f *Forest) Predict(x *Matrix) ([]int, error) {
	proba, err := f.PredictProba(x)
	if err != nil {
		return nil, err
	}
	pred := make([]int, len(proba))
	for i, p := range proba {
		pred[i] = floats.MaxIdx(p)
	}
	return pred, nil
}

// Importance is one named feature importance
type Importance struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"importance"`
}

// TopImportances returns the n most important features, highest first
func (f *Forest) TopImportances(n int) []Importance {
	idx := make([]int, len(f.Importances))
	vals := append([]float64{}, f.Importances...)
	floats.Argsort(vals, idx)

	var top []Importance
	for i := len(idx) - 1; i >= 0 && len(top) < n; i-- {
		top = append(top, Importance{Feature: f.FeatureNames[idx[i]], Value: f.Importances[idx[i]]})
	}
	return top
}
