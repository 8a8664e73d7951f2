package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"lightspeed/internal/codec"
	"lightspeed/internal/domain"
	"lightspeed/internal/noise"
	"lightspeed/internal/report"
	"lightspeed/internal/repository"
	"lightspeed/internal/synth"
	"lightspeed/internal/train"
)

// Raw dataset file names
const (
	BaseFile    = "base_asset_dataset.csv"
	LabeledFile = "labeled_asset_dataset.csv"
)

// Stage names, in run order
const (
	StageGenerate       = "generate"
	StageInject         = "inject"
	StageHydrate        = "hydrate"
	StageJoin           = "join"
	StagePrepare        = "prepare"
	StageTrainInventory = "train_inventory"
	StageTrainIPAM      = "train_ipam"
	StageReport         = "report"
)

// Run statuses recorded in the run history
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// PipelineOptions configures one end-to-end run
type PipelineOptions struct {
	NumAssets    int
	Seed         int64
	RawDir       string
	ProcessedDir string
	ModelDir     string
	ReportDir    string
	// Training configs; an empty path trains with the dedicated settings
	InventoryConfig string
	IPAMConfig      string
	SkipReport      bool
}

// StageTiming is the wall time of one stage
type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// RunResult is everything one run produced
type RunResult struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Noise        noise.Summary
	Tables       domain.TableCounts
	Join         JoinSummary
	Prepared     *PrepareResult
	Training     map[string]*train.Result
	Reports      map[string]*report.Result
	Stages       []StageTiming
	ManifestPath string
}

// GenerateResult lists the raw datasets written by Generate
type GenerateResult struct {
	BasePath    string
	LabeledPath string
	Labeled     []domain.LabeledAsset
	Noise       noise.Summary
}

// DatasetService synthesizes assets and writes the raw datasets. It needs no store.
type DatasetService struct {
	generator *synth.Generator
	injector  *noise.Injector
	log       logrus.FieldLogger
}

// NewDatasetService creates a dataset service
func NewDatasetService(generator *synth.Generator, injector *noise.Injector, log logrus.FieldLogger) *DatasetService {
	return &DatasetService{generator: generator, injector: injector, log: log}
}

// Generate synthesizes assets, injects presence noise and writes both raw datasets
func (s *DatasetService) Generate(ctx context.Context, n int, seed int64, rawDir string) (*GenerateResult, error) {
	res := &GenerateResult{
		BasePath:    filepath.Join(rawDir, BaseFile),
		LabeledPath: filepath.Join(rawDir, LabeledFile),
	}
	if err := s.generate(ctx, n, seed, res); err != nil {
		return nil, err
	}
	if err := s.inject(seed, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *DatasetService) generate(ctx context.Context, n int, seed int64, res *GenerateResult) error {
	assets, err := s.generator.Generate(ctx, n, seed)
	if err != nil {
		return err
	}
	if err := codec.WriteFile(res.BasePath, codec.AssetFrame(assets), codec.NewCSVCodec()); err != nil {
		return err
	}
	s.log.WithField("rows", len(assets)).Infof("Base dataset written to: %s", res.BasePath)
	return nil
}

// inject reads the base dataset back so the labeled file always derives from what is on disk
func (s *DatasetService) inject(seed int64, res *GenerateResult) error {
	frame, err := codec.ReadFile(res.BasePath, codec.NewCSVCodec())
	if err != nil {
		return err
	}
	assets, err := codec.AssetsFromFrame(frame)
	if err != nil {
		return err
	}
	labeled, summary, err := s.injector.Inject(assets, seed)
	if err != nil {
		return err
	}
	if err := codec.WriteFile(res.LabeledPath, codec.LabeledFrame(labeled), codec.NewCSVCodec()); err != nil {
		return err
	}
	res.Labeled = labeled
	res.Noise = summary
	s.log.Infof("Labeled dataset written to: %s", res.LabeledPath)
	return nil
}

// Pipeline chains the generation, storage, training and reporting stages
type Pipeline struct {
	repo     repository.Repository
	datasets *DatasetService
	hydrate  *HydrateService
	join     *JoinService
	prepare  *PrepareService
	events   *EventBus
	log      logrus.FieldLogger
}

// NewPipeline wires the stage services around one repository
func NewPipeline(repo repository.Repository, datasets *DatasetService,
	prepare *PrepareService, events *EventBus, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		repo:     repo,
		datasets: datasets,
		hydrate:  NewHydrateService(repo, log),
		join:     NewJoinService(repo, log),
		prepare:  prepare,
		events:   events,
		log:      log,
	}
}

// Hydrate loads a labeled dataset and replaces the system tables with it
func (p *Pipeline) Hydrate(ctx context.Context, labeledCSV string) (domain.TableCounts, error) {
	frame, err := codec.ReadFile(labeledCSV, codec.NewCSVCodec())
	if err != nil {
		return domain.TableCounts{}, err
	}
	labeled, err := codec.LabeledFromFrame(frame)
	if err != nil {
		return domain.TableCounts{}, err
	}
	return p.hydrate.Hydrate(ctx, labeled)
}

// Prepare rebuilds the unified table and writes the training sets and the
// enriched dataset derived from rawDir's labeled dataset.
func (p *Pipeline) Prepare(ctx context.Context, rawDir, processedDir string) (JoinSummary, *PrepareResult, error) {
	summary, err := p.join.Join(ctx)
	if err != nil {
		return JoinSummary{}, nil, err
	}
	prepared, err := p.prepare.Prepare(ctx, PrepareOptions{
		ProcessedDir: processedDir,
		LabeledCSV:   filepath.Join(rawDir, LabeledFile),
	})
	if err != nil {
		return summary, nil, err
	}
	return summary, prepared, nil
}

// Run executes every stage in order and stops at the first failure. The run is
// recorded in the run history either way; the manifest is written on success.
func (p *Pipeline) Run(ctx context.Context, opts PipelineOptions) (*RunResult, error) {
	res := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Training:  make(map[string]*train.Result),
		Reports:   make(map[string]*report.Result),
	}
	log := p.log.WithField("run_id", res.RunID)
	log.WithFields(logrus.Fields{"assets": opts.NumAssets, "seed": opts.Seed}).Info("Starting pipeline run")

	err := p.runStages(ctx, opts, res)
	res.FinishedAt = time.Now().UTC()

	if err == nil {
		manifest := NewManifest(res, opts)
		path := filepath.Join(opts.ReportDir, ManifestFile)
		if werr := manifest.Write(path); werr != nil {
			err = fmt.Errorf("write manifest: %w", werr)
		} else {
			res.ManifestPath = path
			log.Infof("Run manifest written to: %s", path)
		}
	}

	record := domain.RunRecord{
		RunID:      res.RunID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Seed:       opts.Seed,
		NumAssets:  opts.NumAssets,
		Status:     RunSucceeded,
	}
	if err != nil {
		record.Status = RunFailed
		record.Error = err.Error()
	}
	if rerr := p.repo.RecordRun(context.WithoutCancel(ctx), record); rerr != nil {
		log.WithError(rerr).Warn("Failed to record run")
	}

	p.events.Publish(Event{Type: EventRunCompleted, Payload: StagePayload{
		RunID:    res.RunID,
		Stage:    record.Status,
		Duration: res.FinishedAt.Sub(res.StartedAt),
		Error:    record.Error,
	}})
	if err != nil {
		return res, err
	}
	log.WithField("duration", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond)).Info("Pipeline completed")
	return res, nil
}

func (p *Pipeline) runStages(ctx context.Context, opts PipelineOptions, res *RunResult) error {
	gen := &GenerateResult{
		BasePath:    filepath.Join(opts.RawDir, BaseFile),
		LabeledPath: filepath.Join(opts.RawDir, LabeledFile),
	}
	invCfg, ipamCfg, err := trainingConfigs(opts)
	if err != nil {
		return err
	}

	stages := []stage{
		{StageGenerate, func(ctx context.Context) error {
			return p.datasets.generate(ctx, opts.NumAssets, opts.Seed, gen)
		}},
		{StageInject, func(context.Context) error {
			if err := p.datasets.inject(opts.Seed, gen); err != nil {
				return err
			}
			res.Noise = gen.Noise
			return nil
		}},
		{StageHydrate, func(ctx context.Context) error {
			res.Tables, err = p.hydrate.Hydrate(ctx, gen.Labeled)
			return err
		}},
		{StageJoin, func(ctx context.Context) error {
			res.Join, err = p.join.Join(ctx)
			return err
		}},
		{StagePrepare, func(ctx context.Context) error {
			res.Prepared, err = p.prepare.Prepare(ctx, PrepareOptions{
				ProcessedDir: opts.ProcessedDir,
				LabeledCSV:   gen.LabeledPath,
			})
			return err
		}},
		{StageTrainInventory, func(ctx context.Context) error {
			res.Training[InventoryTrainingSet.Name], err = train.FromConfig(ctx, invCfg, p.log)
			return err
		}},
		{StageTrainIPAM, func(ctx context.Context) error {
			res.Training[IPAMTrainingSet.Name], err = train.FromConfig(ctx, ipamCfg, p.log)
			return err
		}},
	}
	if !opts.SkipReport {
		stages = append(stages, stage{StageReport, func(ctx context.Context) error {
			return p.reportAll(ctx, opts.ReportDir, map[string]*train.Config{
				InventoryTrainingSet.Name: invCfg,
				IPAMTrainingSet.Name:      ipamCfg,
			}, res)
		}})
	}

	for _, s := range stages {
		if err := p.runStage(ctx, res, s.name, s.run); err != nil {
			return err
		}
	}
	return nil
}

type stage struct {
	name string
	run  func(context.Context) error
}

// runStage times one stage and publishes its transitions
func (p *Pipeline) runStage(ctx context.Context, res *RunResult, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	p.events.Publish(Event{Type: EventStageStarted, Payload: StagePayload{RunID: res.RunID, Stage: name}})

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	res.Stages = append(res.Stages, StageTiming{Name: name, Duration: elapsed})

	if err != nil {
		p.events.Publish(Event{Type: EventStageFailed, Payload: StagePayload{
			RunID: res.RunID, Stage: name, Duration: elapsed, Error: err.Error(),
		}})
		return fmt.Errorf("%s: %w", name, err)
	}
	p.events.Publish(Event{Type: EventStageCompleted, Payload: StagePayload{
		RunID: res.RunID, Stage: name, Duration: elapsed,
	}})
	return nil
}

// reportAll writes one report directory per trained model
func (p *Pipeline) reportAll(ctx context.Context, reportDir string, configs map[string]*train.Config, res *RunResult) error {
	for _, set := range []TrainingSet{InventoryTrainingSet, IPAMTrainingSet} {
		cfg := configs[set.Name]
		r, err := report.Generate(ctx, cfg.ReportSources(), filepath.Join(reportDir, set.Name), ReportTitle(set.Name))
		if err != nil {
			return fmt.Errorf("%s report: %w", set.Name, err)
		}
		res.Reports[set.Name] = r
		p.log.WithField("accuracy", fmt.Sprintf("%.4f", r.Report.Accuracy)).Infof("%s report written", ReportTitle(set.Name))
	}
	return nil
}

// ReportTitle names a model in chart titles
func ReportTitle(name string) string {
	switch name {
	case InventoryTrainingSet.Name:
		return "Inventory Model"
	case IPAMTrainingSet.Name:
		return "IPAM Model"
	}
	return name
}

// trainingConfigs loads the configured training runs, falling back to the
// dedicated settings over ProcessedDir and ModelDir.
func trainingConfigs(opts PipelineOptions) (*train.Config, *train.Config, error) {
	load := func(path string, fallback *train.Config) (*train.Config, error) {
		if path == "" {
			return fallback, nil
		}
		return train.LoadConfig(path)
	}
	var result *multierror.Error
	inv, err := load(opts.InventoryConfig, train.InventoryConfig(opts.ProcessedDir, opts.ModelDir))
	if err != nil {
		result = multierror.Append(result, err)
	}
	ipam, err := load(opts.IPAMConfig, train.IPAMConfig(opts.ProcessedDir, opts.ModelDir))
	if err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, nil, err
	}
	return inv, ipam, nil
}
