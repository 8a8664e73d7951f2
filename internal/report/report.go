// Package report scores a saved model against a dataset and renders its charts.
package report

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"lightspeed/internal/codec"
	"lightspeed/internal/domain"
	"lightspeed/internal/ml"
)

// Artifact file names written into the output directory
const (
	ReportFile     = "classification_report.json"
	ConfusionFile  = "confusion_matrix.png"
	ImportanceFile = "feature_importance.png"
)

// TopFeatures is the number of bars in the importance chart
const TopFeatures = 20

// Result is the outcome of one report run
type Result struct {
	Report *ml.Report
	Matrix [][]int
	Files  []string
}

// Sources are the saved artifacts and the dataset a report is built from
type Sources struct {
	Model   string
	Encoder string
	Dataset string
}

// Generate loads a model, its encoder and a labeled dataset, predicts every row
// and writes the classification report, the confusion matrix and the importance
// chart. The saved encoder reproduces the training columns: dataset columns the
// model never saw are dropped and feature columns the dataset lacks stay zero.
func Generate(ctx context.Context, src Sources, outputDir, title string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	forest, err := ml.LoadModel(src.Model)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	saved, err := ml.LoadEncoder(src.Encoder)
	if err != nil {
		return nil, fmt.Errorf("load encoder: %w", err)
	}
	if !slices.Equal(saved.Columns, forest.FeatureNames) {
		return nil, fmt.Errorf("encoder %s has %d columns that do not match the model's %d features",
			src.Encoder, len(saved.Columns), len(forest.FeatureNames))
	}
	frame, err := codec.ReadFile(src.Dataset, codec.NewCSVCodec())
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	label := forest.Target
	if label == "" {
		label = domain.ColMissingInInventory
	}
	values, err := frame.Column(label)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	present := slices.DeleteFunc(slices.Clone(saved.Features), func(f string) bool {
		return frame.Index(f) < 0
	})
	x, err := ml.NewEncoder(present, saved.Columns).Transform(frame)
	if err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}
	yTrue, err := ml.EncodeLabels(values, forest.Classes)
	if err != nil {
		return nil, fmt.Errorf("encode labels: %w", err)
	}
	yPred, err := forest.Predict(x)
	if err != nil {
		return nil, err
	}

	rep, err := ml.ClassificationReport(yTrue, yPred, forest.Classes)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Report: rep,
		Matrix: ml.ConfusionMatrix(yTrue, yPred, len(forest.Classes)),
	}

	reportPath := filepath.Join(outputDir, ReportFile)
	if err := codec.WriteJSON(reportPath, rep); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	res.Files = append(res.Files, reportPath)

	cmPath := filepath.Join(outputDir, ConfusionFile)
	if err := ConfusionChart(cmPath, title+" - Confusion Matrix", res.Matrix, DisplayLabels(forest.Classes)); err != nil {
		return nil, err
	}
	res.Files = append(res.Files, cmPath)

	impPath := filepath.Join(outputDir, ImportanceFile)
	top := forest.TopImportances(TopFeatures)
	if err := ImportanceChart(impPath, fmt.Sprintf("%s - Top %d Features", title, len(top)), top); err != nil {
		return nil, err
	}
	res.Files = append(res.Files, impPath)

	return res, nil
}

// DisplayLabels names presence classes: 0 is Present and 1 is Missing
func DisplayLabels(classes []string) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		switch c {
		case "0":
			out[i] = "Present"
		case "1":
			out[i] = "Missing"
		default:
			out[i] = c
		}
	}
	return out
}
