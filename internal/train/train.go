// Package train fits presence classifiers from training-set CSVs and writes
// their model, encoder, report and importance artifacts.
package train

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"lightspeed/internal/codec"
	"lightspeed/internal/domain"
	"lightspeed/internal/ml"
	"lightspeed/internal/report"
)

// Result is the outcome of one training run
type Result struct {
	Config    *Config
	Forest    *ml.Forest
	Encoder   *ml.Encoder
	Report    *ml.Report
	TrainRows int
	TestRows  int
	Top       []ml.Importance
	Files     []string
}

// FromConfig loads the input CSV, encodes the features, fits a forest on a
// stratified split and writes the configured artifacts.
func FromConfig(ctx context.Context, cfg *Config, log logrus.FieldLogger) (*Result, error) {
	log = log.WithField("label", cfg.Label)

	frame, err := codec.ReadFile(cfg.InputCSV, codec.NewCSVCodec())
	if err != nil {
		return nil, fmt.Errorf("load training set: %w", err)
	}
	features := cfg.Features
	if len(features) == 0 {
		features = otherColumns(frame, cfg.Label)
	}
	if missing := frame.MissingColumns(append([]string{cfg.Label}, features...)...); len(missing) > 0 {
		return nil, fmt.Errorf("load training set: columns not in %s: %v", cfg.InputCSV, missing)
	}
	log.WithFields(logrus.Fields{"rows": frame.Len(), "features": len(features)}).Info("Loaded training set")

	enc, err := ml.FitEncoder(frame, features)
	if err != nil {
		return nil, err
	}
	x, err := enc.Transform(frame)
	if err != nil {
		return nil, err
	}
	labels, _ := frame.Column(cfg.Label)
	y, classes := ml.LabelClasses(labels)

	trainIdx, testIdx, err := ml.StratifiedSplit(y, len(classes), cfg.TestSize, *cfg.RandomState)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", cfg.InputCSV, err)
	}
	xTrain, yTrain := subset(x, y, trainIdx)
	xTest, yTest := subset(x, y, testIdx)

	forest, err := ml.NewForest(cfg.ModelParams)
	if err != nil {
		return nil, fmt.Errorf("model_params: %w", err)
	}
	forest.Target = cfg.Label
	if err := forest.Fit(ctx, xTrain, yTrain, classes, enc.Columns); err != nil {
		return nil, err
	}

	yPred, err := forest.Predict(xTest)
	if err != nil {
		return nil, err
	}
	rep, err := ml.ClassificationReport(yTest, yPred, classes)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"train_rows": len(trainIdx),
		"test_rows":  len(testIdx),
		"columns":    x.NumCols,
		"accuracy":   fmt.Sprintf("%.4f", rep.Accuracy),
	}).Info("Model trained")
	log.Debugf("Model report\n%s", rep)

	res := &Result{
		Config:    cfg,
		Forest:    forest,
		Encoder:   enc,
		Report:    rep,
		TrainRows: len(trainIdx),
		TestRows:  len(testIdx),
		Top:       forest.TopImportances(cfg.TopNFeatures),
	}
	if err := res.save(); err != nil {
		return nil, err
	}
	for _, f := range res.Files {
		log.WithField("path", f).Info("Wrote artifact")
	}
	return res, nil
}

func (r *Result) save() error {
	cfg := r.Config
	if cfg.OutputReport != "" {
		if err := codec.WriteJSON(cfg.OutputReport, r.Report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		r.Files = append(r.Files, cfg.OutputReport)
	}
	if err := ml.SaveModel(cfg.OutputModel, r.Forest); err != nil {
		return err
	}
	if err := ml.SaveEncoder(cfg.OutputEncoder, r.Encoder); err != nil {
		return err
	}
	r.Files = append(r.Files, cfg.OutputModel, cfg.OutputEncoder)
	if cfg.OutputPlot != "" {
		if err := report.ImportanceChart(cfg.OutputPlot, "Feature Importances", r.Top); err != nil {
			return err
		}
		r.Files = append(r.Files, cfg.OutputPlot)
	}
	return nil
}

// ReportSources points a report at the run's saved model, encoder and input set
func (c *Config) ReportSources() report.Sources {
	return report.Sources{Model: c.OutputModel, Encoder: c.OutputEncoder, Dataset: c.InputCSV}
}

// Dedicated trainer settings: every non-label column is a feature and a quarter
// of the rows is held out.
const (
	DedicatedTestSize = 0.25
	InventoryModel    = "inventory_model.json.xz"
	IPAMModel         = "ipam_model.json.xz"
)

// InventoryConfig builds the run of the dedicated inventory trainer
func InventoryConfig(inputDir, modelDir string) *Config {
	return dedicatedConfig(filepath.Join(inputDir, "inventory_training_set.csv"),
		domain.ColMissingInInventory, filepath.Join(modelDir, InventoryModel),
		filepath.Join(modelDir, "inventory_encoder.json"))
}

// IPAMConfig builds the run of the dedicated IPAM trainer
func IPAMConfig(inputDir, modelDir string) *Config {
	return dedicatedConfig(filepath.Join(inputDir, "ipam_training_set.csv"),
		domain.ColMissingInIPAM, filepath.Join(modelDir, IPAMModel),
		filepath.Join(modelDir, "ipam_encoder.json"))
}

func dedicatedConfig(input, label, model, encoder string) *Config {
	cfg := &Config{
		InputCSV:      input,
		Label:         label,
		TestSize:      DedicatedTestSize,
		OutputModel:   model,
		OutputEncoder: encoder,
	}
	cfg.applyDefaults()
	return cfg
}

func otherColumns(frame *domain.Frame, label string) []string {
	var out []string
	for _, c := range frame.Columns {
		if c != label {
			out = append(out, c)
		}
	}
	return out
}

func subset(x *ml.Matrix, y []int, idx []int) (*ml.Matrix, []int) {
	m := &ml.Matrix{NumCols: x.NumCols, Rows: make([][]int32, len(idx))}
	out := make([]int, len(idx))
	for i, j := range idx {
		m.Rows[i] = x.Rows[j]
		out[i] = y[j]
	}
	return m, out
}
