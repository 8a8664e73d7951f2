package service

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/crypto/blake2b"

	"lightspeed/internal/codec"
	"lightspeed/internal/domain"
	"lightspeed/internal/noise"
)

// ManifestFile is the run manifest written into the report directory
const ManifestFile = "run_manifest.json"

// Manifest records what a pipeline run did and produced
type Manifest struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Seed       int64              `json:"seed"`
	NumAssets  int                `json:"num_assets"`
	Noise      noise.Summary      `json:"noise"`
	Tables     domain.TableCounts `json:"tables"`
	Join       JoinSummary        `json:"join"`
	Accuracy   map[string]float64 `json:"accuracy"`
	Stages     []StageTiming      `json:"stages"`
	Artifacts  []Artifact         `json:"artifacts"`
}

// Artifact is a produced file and its BLAKE2b-256 digest
type Artifact struct {
	Path    string `json:"path"`
	BLAKE2b string `json:"blake2b_256"`
}

// NewManifest collects a finished run's metadata and the paths it wrote
func NewManifest(res *RunResult, opts PipelineOptions) *Manifest {
	m := &Manifest{
		RunID:      res.RunID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Seed:       opts.Seed,
		NumAssets:  opts.NumAssets,
		Noise:      res.Noise,
		Tables:     res.Tables,
		Join:       res.Join,
		Accuracy:   make(map[string]float64),
		Stages:     res.Stages,
	}

	seen := make(map[string]bool)
	add := func(path string) {
		if path != "" && !seen[path] {
			seen[path] = true
			m.Artifacts = append(m.Artifacts, Artifact{Path: path})
		}
	}
	add(filepath.Join(opts.RawDir, BaseFile))
	add(filepath.Join(opts.RawDir, LabeledFile))
	if res.Prepared != nil {
		for _, f := range res.Prepared.Files {
			add(f)
		}
	}
	for name, t := range res.Training {
		m.Accuracy[name] = t.Report.Accuracy
		for _, f := range t.Files {
			add(f)
		}
	}
	for _, r := range res.Reports {
		for _, f := range r.Files {
			add(f)
		}
	}
	sort.Slice(m.Artifacts, func(i, j int) bool { return m.Artifacts[i].Path < m.Artifacts[j].Path })
	return m
}

// Write digests every artifact and writes the manifest as JSON
func (m *Manifest) Write(path string) error {
	for i := range m.Artifacts {
		sum, err := DigestFile(m.Artifacts[i].Path)
		if err != nil {
			return err
		}
		m.Artifacts[i].BLAKE2b = sum
	}
	return codec.WriteJSON(path, m)
}

// DigestFile returns the hex BLAKE2b-256 digest of a file
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
