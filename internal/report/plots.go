package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"lightspeed/internal/ml"
)

// ImportanceChart draws feature importances as horizontal bars, most important on top
func ImportanceChart(path, title string, top []ml.Importance) error {
	if len(top) == 0 {
		return fmt.Errorf("plot importances: nothing to plot")
	}

	values := make(plotter.Values, len(top))
	names := make([]string, len(top))
	for i, imp := range top {
		j := len(top) - 1 - i
		values[j] = imp.Value
		names[j] = imp.Feature
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Feature Importance"

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return fmt.Errorf("plot importances: %w", err)
	}
	bars.Horizontal = true
	p.Add(bars)
	p.NominalY(names...)

	return save(p, path, 8*vg.Inch, 6*vg.Inch)
}

// confusionGrid adapts a confusion matrix to plotter.GridXYZ.
// Columns are predicted classes, rows are true classes.
type confusionGrid [][]int

func (g confusionGrid) Dims() (c, r int)   { return len(g), len(g) }
func (g confusionGrid) Z(c, r int) float64 { return float64(g[r][c]) }
func (g confusionGrid) X(c int) float64    { return float64(c) }
func (g confusionGrid) Y(r int) float64    { return float64(r) }

// ConfusionChart draws an annotated confusion matrix heat map
func ConfusionChart(path, title string, cm [][]int, labels []string) error {
	if len(cm) == 0 || len(labels) != len(cm) {
		return fmt.Errorf("plot confusion matrix: %d labels for %d classes", len(labels), len(cm))
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Actual"

	heat := plotter.NewHeatMap(confusionGrid(cm), palette.Heat(16, 1))
	if heat.Max == heat.Min {
		heat.Max = heat.Min + 1
	}
	p.Add(heat)

	var annot plotter.XYLabels
	for r := range cm {
		for c := range cm[r] {
			annot.XYs = append(annot.XYs, plotter.XY{X: float64(c), Y: float64(r)})
			annot.Labels = append(annot.Labels, strconv.Itoa(cm[r][c]))
		}
	}
	text, err := plotter.NewLabels(annot)
	if err != nil {
		return fmt.Errorf("plot confusion matrix: %w", err)
	}
	p.Add(text)
	p.NominalX(labels...)
	p.NominalY(labels...)

	return save(p, path, 6*vg.Inch, 5*vg.Inch)
}

func save(p *plot.Plot, path string, w, h vg.Length) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
