package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightspeed/internal/codec"
	"lightspeed/internal/domain"
	"lightspeed/internal/ml"
)

func presenceFrame(t *testing.T, n int, withExtra bool) *domain.Frame {
	t.Helper()
	cols := []string{"model", "status", "missing_in_ipam"}
	if withExtra {
		cols = append(cols, "site")
	}
	f := domain.NewFrame(cols...)
	models := []string{"MX204", "ETX-2", "FSP150"}
	for i := 0; i < n; i++ {
		m := models[i%3]
		label := "0"
		if m == "ETX-2" {
			label = "1"
		}
		row := []string{m, []string{"active", ""}[i%2], label}
		if withExtra {
			row = append(row, "ATL")
		}
		require.NoError(t, f.Append(row))
	}
	return f
}

func saveModel(t *testing.T, dir string) Sources {
	t.Helper()
	frame := presenceFrame(t, 60, false)
	enc, err := ml.FitEncoder(frame, []string{"model", "status"})
	require.NoError(t, err)
	x, err := enc.Transform(frame)
	require.NoError(t, err)
	labels, err := frame.Column("missing_in_ipam")
	require.NoError(t, err)
	y, classes := ml.LabelClasses(labels)

	p := ml.DefaultParams()
	p.NEstimators = 10
	forest, err := ml.NewForest(p)
	require.NoError(t, err)
	forest.Target = "missing_in_ipam"
	require.NoError(t, forest.Fit(context.Background(), x, y, classes, enc.Columns))

	src := Sources{
		Model:   filepath.Join(dir, "ipam_model.json.xz"),
		Encoder: filepath.Join(dir, "ipam_encoder.json"),
	}
	require.NoError(t, ml.SaveModel(src.Model, forest))
	require.NoError(t, ml.SaveEncoder(src.Encoder, enc))
	return src
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	src := saveModel(t, dir)

	// The extra column is unknown to the model and must be ignored.
	src.Dataset = filepath.Join(dir, "ipam_training_set.csv")
	require.NoError(t, codec.WriteFile(src.Dataset, presenceFrame(t, 30, true), codec.NewCSVCodec()))

	out := filepath.Join(dir, "reports", "ipam")
	res, err := Generate(context.Background(), src, out, "IPAM Model")
	require.NoError(t, err)

	assert.Equal(t, 1.0, res.Report.Accuracy)
	assert.Equal(t, [][]int{{20, 0}, {0, 10}}, res.Matrix)
	for _, name := range []string{ReportFile, ConfusionFile, ImportanceFile} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	data, err := os.ReadFile(filepath.Join(out, ReportFile))
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "macro avg")
	assert.Contains(t, raw, "1")
}

func TestGenerateReindexesAbsentColumns(t *testing.T) {
	dir := t.TempDir()
	src := saveModel(t, dir)

	// Only one model value appears, so the other model columns are zero.
	f := domain.NewFrame("missing_in_ipam", "status", "model")
	for _, row := range [][]string{{"1", "active", "ETX-2"}, {"1", "", "ETX-2"}} {
		require.NoError(t, f.Append(row))
	}
	src.Dataset = filepath.Join(dir, "one.csv")
	require.NoError(t, codec.WriteFile(src.Dataset, f, codec.NewCSVCodec()))

	res, err := Generate(context.Background(), src, filepath.Join(dir, "out"), "IPAM Model")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, res.Report.Labels)
}

func TestGenerateWithoutAFeatureColumn(t *testing.T) {
	dir := t.TempDir()
	src := saveModel(t, dir)

	// status is absent, so all of its columns stay zero
	f := domain.NewFrame("model", "missing_in_ipam")
	for _, row := range [][]string{{"ETX-2", "1"}, {"MX204", "0"}, {"FSP150", "0"}} {
		require.NoError(t, f.Append(row))
	}
	src.Dataset = filepath.Join(dir, "nostatus.csv")
	require.NoError(t, codec.WriteFile(src.Dataset, f, codec.NewCSVCodec()))

	res, err := Generate(context.Background(), src, filepath.Join(dir, "out"), "IPAM Model")
	require.NoError(t, err)
	present, ok := res.Report.Class("0")
	require.True(t, ok)
	missing, ok := res.Report.Class("1")
	require.True(t, ok)
	assert.Equal(t, 2, present.Support)
	assert.Equal(t, 1, missing.Support)
}

func TestGenerateRejectsForeignEncoder(t *testing.T) {
	dir := t.TempDir()
	src := saveModel(t, dir)
	src.Dataset = filepath.Join(dir, "set.csv")
	require.NoError(t, codec.WriteFile(src.Dataset, presenceFrame(t, 30, false), codec.NewCSVCodec()))

	foreign := ml.NewEncoder([]string{"model"}, []string{"model_ETX-2", "model_MX204"})
	src.Encoder = filepath.Join(dir, "foreign.json")
	require.NoError(t, ml.SaveEncoder(src.Encoder, foreign))

	_, err := Generate(context.Background(), src, filepath.Join(dir, "out"), "IPAM Model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")

	src.Encoder = filepath.Join(dir, "absent.json")
	_, err = Generate(context.Background(), src, filepath.Join(dir, "out"), "IPAM Model")
	assert.Error(t, err)
}

func TestGenerateErrors(t *testing.T) {
	dir := t.TempDir()
	src := saveModel(t, dir)

	f := domain.NewFrame("model", "status")
	require.NoError(t, f.Append([]string{"MX204", "active"}))
	src.Dataset = filepath.Join(dir, "nolabel.csv")
	require.NoError(t, codec.WriteFile(src.Dataset, f, codec.NewCSVCodec()))

	_, err := Generate(context.Background(), src, dir, "x")
	assert.Error(t, err)

	src.Model = filepath.Join(dir, "absent.xz")
	_, err = Generate(context.Background(), src, dir, "x")
	assert.Error(t, err)
}

func TestDisplayLabels(t *testing.T) {
	assert.Equal(t, []string{"Present", "Missing", "2"}, DisplayLabels([]string{"0", "1", "2"}))
}

func TestConfusionChartRejectsMismatch(t *testing.T) {
	err := ConfusionChart(filepath.Join(t.TempDir(), "cm.png"), "t", [][]int{{1, 0}, {0, 1}}, []string{"a"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "uniform.png")
	require.NoError(t, ConfusionChart(path, "t", [][]int{{2, 2}, {2, 2}}, []string{"a", "b"}))
	assert.FileExists(t, path)
}
