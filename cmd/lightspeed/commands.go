package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"lightspeed/internal/config"
	"lightspeed/internal/report"
	"lightspeed/internal/service"
	"lightspeed/internal/train"
	"lightspeed/internal/workspace"
)

// Command is one lightspeed subcommand
type Command interface {
	Description() string
	SetupFlagSet(flagSet *pflag.FlagSet, e *env)
	Execute(ctx context.Context, e *env) error
}

var knownCommands = map[string]Command{
	"init":            &initCommand{},
	"generate":        &generateCommand{},
	"hydrate":         &hydrateCommand{},
	"prepare":         &prepareCommand{},
	"train":           &trainCommand{},
	"train-inventory": &dedicatedTrainCommand{targets: []string{"inventory"}},
	"train-ipam":      &dedicatedTrainCommand{targets: []string{"ipam"}},
	"train-both":      &dedicatedTrainCommand{targets: []string{"inventory", "ipam"}},
	"report":          &reportCommand{},
	"pipeline":        &pipelineCommand{},
	"reset":           &resetCommand{},
	"history":         &historyCommand{},
}

// dbFlag overrides the store location: the file path for sqlite, the DSN for mysql
func dbFlag(flagSet *pflag.FlagSet, e *env) {
	target, what := &e.cfg.Database.Path, "database file"
	if e.cfg.Database.Driver == config.DriverMySQL {
		target, what = &e.cfg.Database.DSN, "database DSN"
	}
	flagSet.StringVar(target, "db", *target, fmt.Sprintf("%s (%s driver)", what, e.cfg.Database.Driver))
}

type initCommand struct {
	path  string
	force bool
}

func (c *initCommand) Description() string { return "write the default settings file" }

func (c *initCommand) SetupFlagSet(flagSet *pflag.FlagSet, e *env) {
	flagSet.StringVar(&c.path, "path", config.DefaultConfigPath(), "where to write the settings")
	flagSet.BoolVar(&c.force, "force", false, "overwrite an existing file")
}

func (c *initCommand) Execute(_ context.Context, e *env) error {
	if fileExists(c.path) && !c.force {
		return usagef("%s already exists (use --force to overwrite)", c.path)
	}
	if err := config.DefaultConfig().Save(c.path); err != nil {
		return err
	}
	e.log.Infof("Settings written to %s", c.path)
	return nil
}

type generateCommand struct{}

func (c *generateCommand) Description() string {
	return "synthesize assets and inject presence noise into the raw datasets"
}

func (c *generateCommand) SetupFlagSet(flagSet *pflag.FlagSet, e *env) {
	g := &e.cfg.Generation
	flagSet.IntVar(&g.NumAssets, "num_assets", g.NumAssets, "number of assets to generate")
	flagSet.Int64Var(&g.Seed, "seed", g.Seed, "random seed")
	flagSet.StringVar(&e.cfg.Paths.RawDir, "raw_dir", e.cfg.Paths.RawDir, "raw dataset directory")
	flagSet.StringVar(&g.NoiseConfig, "config", g.NoiseConfig, "noise probability config JSON")
}

func (c *generateCommand) Execute(ctx context.Context, e *env) error {
	if e.cfg.Generation.NumAssets <= 0 {
		return usagef("--num_assets must be positive")
	}
	datasets, err := e.Datasets(e.cfg.Generation.NoiseConfig)
	if err != nil {
		return err
	}
	res, err := datasets.Generate(ctx, e.cfg.Generation.NumAssets, e.cfg.Generation.Seed, e.cfg.Paths.RawDir)
	if err != nil {
		return err
	}
	printNoise(e.stdout, res)
	return nil
}

type hydrateCommand struct{}

func (c *hydrateCommand) Description() string {
	return "load the labeled dataset into the observability, inventory and ipam tables"
}

func (c *hydrateCommand) SetupFlagSet(flagSet *pflag.FlagSet, e *env) {
	flagSet.StringVar(&e.cfg.Paths.RawDir, "raw_dir", e.cfg.Paths.RawDir, "raw dataset directory")
	dbFlag(flagSet, e)
}

func (c *hydrateCommand) Execute(ctx context.Context, e *env) error {
	p, err := e.Pipeline(e.cfg.Generation.NoiseConfig, service.NewEventBus())
	if err != nil {
		return err
	}
	counts, err := p.Hydrate(ctx, filepath.Join(e.cfg.Paths.RawDir, service.LabeledFile))
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "observability=%d inventory=%d ipam=%d\n", counts.Observability, counts.Inventory, counts.IPAM)
	return nil
}

type prepareCommand struct{}

func (c *prepareCommand) Description() string {
	return "join the system tables and write the training sets"
}

func (c *prepareCommand) SetupFlagSet(flagSet *pflag.FlagSet, e *env) {
	flagSet.StringVar(&e.cfg.Paths.RawDir, "raw_dir", e.cfg.Paths.RawDir, "raw dataset directory")
	flagSet.StringVar(&e.cfg.Paths.ProcessedDir, "processed_dir", e.cfg.Paths.ProcessedDir, "processed dataset directory")
	dbFlag(flagSet, e)
}

func (c *prepareCommand) Execute(ctx context.Context, e *env) error {
	p, err := e.Pipeline(e.cfg.Generation.NoiseConfig, service.NewEventBus())
	if err != nil {
		return err
	}
	summary, prepared, err := p.Prepare(ctx, e.cfg.Paths.RawDir, e.cfg.Paths.ProcessedDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "lightspeed_asset rows=%d missing_in_inventory=%d missing_in_ipam=%d\n",
		summary.Rows, summary.MissingInInventory, summary.MissingInIPAM)
	for _, name := range sortedKeys(prepared.Files) {
		fmt.Fprintf(e.stdout, "  %-10s %s\n", name, prepared.Files[name])
	}
	return nil
}

type trainCommand struct {
	config string
}

func (c *trainCommand) Description() string { return "train one model from a JSON training config" }

func (c *trainCommand) SetupFlagSet(flagSet *pflag.FlagSet, e *env) {
	flagSet.StringVar(&c.config, "config", e.cfg.Training.InventoryConfig, "training config JSON")
}

func (c *trainCommand) Execute(ctx context.Context, e *env) error {
	cfg, err := train.LoadConfig(c.config)
	if err != nil {
		return err
	}
	res, err := train.FromConfig(ctx, cfg, e.log)
	if err != nil {
		return err
	}
	printReport(e.stdout, "Model Report", res.Report)
	return nil
}

type dedicatedTrainCommand struct {
	targets []string
}

func (c *dedicatedTrainCommand) Description() string {
	if len(c.targets) > 1 {
		return "train the inventory and ipam models with their dedicated settings"
	}
	return fmt.Sprintf("train the %s model with its dedicated settings", c.targets[0])
}

func (c *dedicatedTrainCommand) SetupFlagSet(flagSet *pflag.FlagSet, e *env) {
	flagSet.StringVar(&e.cfg.Paths.ProcessedDir, "input_dir", e.cfg.Paths.ProcessedDir, "directory with the training sets")
	flagSet.StringVar(&e.cfg.Paths.ModelDir, "model_dir", e.cfg.Paths.ModelDir, "model output directory")
}

func (c *dedicatedTrainCommand) Execute(ctx context.Context, e *env) error {
	for _, target := range c.targets {
		cfg := dedicatedConfig(target, e.cfg.Paths.ProcessedDir, e.cfg.Paths.ModelDir)
		res, err := train.FromConfig(ctx, cfg, e.log)
		if err != nil {
			return fmt.Errorf("train %s: %w", target, err)
		}
		printReport(e.stdout, service.ReportTitle(target), res.Report)
	}
	return nil
}

func dedicatedConfig(target, inputDir, modelDir string) *train.Config {
	if target == service.IPAMTrainingSet.Name {
		return train.IPAMConfig(inputDir, modelDir)
	}
	return train.InventoryConfig(inputDir, modelDir)
}

type reportCommand struct{}

func (c *reportCommand) Description() string {
	return "render classification reports and charts for the saved models"
}

func (c *reportCommand) SetupFlagSet(flagSet *pflag.FlagSet, e *env) {
	flagSet.StringVar(&e.cfg.Paths.ProcessedDir, "input_dir", e.cfg.Paths.ProcessedDir, "directory with the training sets")
	flagSet.StringVar(&e.cfg.Paths.ModelDir, "model_dir", e.cfg.Paths.ModelDir, "directory with the trained models")
	flagSet.StringVar(&e.cfg.Paths.ReportDir, "output_dir", e.cfg.Paths.ReportDir, "report output directory")
}

func (c *reportCommand) Execute(ctx context.Context, e *env) error {
	for _, set := range []service.TrainingSet{service.InventoryTrainingSet, service.IPAMTrainingSet} {
		cfg := dedicatedConfig(set.Name, e.cfg.Paths.ProcessedDir, e.cfg.Paths.ModelDir)
		out := filepath.Join(e.cfg.Paths.ReportDir, set.Name)
		res, err := report.Generate(ctx, cfg.ReportSources(), out, service.ReportTitle(set.Name))
		if err != nil {
			return fmt.Errorf("%s report: %w", set.Name, err)
		}
		printReport(e.stdout, service.ReportTitle(set.Name), res.Report)
		e.log.Infof("%s report written to %s", service.ReportTitle(set.Name), out)
	}
	return nil
}

type pipelineCommand struct{}

func (c *pipelineCommand) Description() string {
	return "run generate, hydrate, prepare, train and report end to end"
}

func (c *pipelineCommand) SetupFlagSet(flagSet *pflag.FlagSet, e *env) {
	(&generateCommand{}).SetupFlagSet(flagSet, e)
	p, t := &e.cfg.Paths, &e.cfg.Training
	flagSet.StringVar(&p.ProcessedDir, "processed_dir", p.ProcessedDir, "processed dataset directory")
	flagSet.StringVar(&p.ModelDir, "model_dir", p.ModelDir, "model output directory")
	flagSet.StringVar(&p.ReportDir, "output_dir", p.ReportDir, "report output directory")
	flagSet.StringVar(&t.InventoryConfig, "inventory_config", t.InventoryConfig, "inventory training config JSON (empty: dedicated settings)")
	flagSet.StringVar(&t.IPAMConfig, "ipam_config", t.IPAMConfig, "ipam training config JSON (empty: dedicated settings)")
	flagSet.BoolVar(&t.SkipReport, "skip_report", t.SkipReport, "skip report generation")
	dbFlag(flagSet, e)
}

func (c *pipelineCommand) Execute(ctx context.Context, e *env) error {
	if e.cfg.Generation.NumAssets <= 0 {
		return usagef("--num_assets must be positive")
	}

	bus := service.NewEventBus()
	events := make(chan service.Event, 100)
	bus.Subscribe(events)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logEvents(e.log, events)
	}()

	p, err := e.Pipeline(e.cfg.Generation.NoiseConfig, bus)
	if err != nil {
		bus.Close()
		<-done
		return err
	}
	res, err := p.Run(ctx, service.PipelineOptions{
		NumAssets:       e.cfg.Generation.NumAssets,
		Seed:            e.cfg.Generation.Seed,
		RawDir:          e.cfg.Paths.RawDir,
		ProcessedDir:    e.cfg.Paths.ProcessedDir,
		ModelDir:        e.cfg.Paths.ModelDir,
		ReportDir:       e.cfg.Paths.ReportDir,
		InventoryConfig: existingOrEmpty(e, e.cfg.Training.InventoryConfig),
		IPAMConfig:      existingOrEmpty(e, e.cfg.Training.IPAMConfig),
		SkipReport:      e.cfg.Training.SkipReport,
	})
	bus.Close()
	<-done
	if err != nil {
		return err
	}

	for _, set := range []service.TrainingSet{service.InventoryTrainingSet, service.IPAMTrainingSet} {
		if t, ok := res.Training[set.Name]; ok {
			printReport(e.stdout, service.ReportTitle(set.Name), t.Report)
		}
	}
	printRun(e.stdout, res)
	return nil
}

// existingOrEmpty drops a training config path that does not exist so the
// dedicated settings are used instead
func existingOrEmpty(e *env, path string) string {
	if path == "" || fileExists(path) {
		return path
	}
	e.log.WithField("path", path).Warn("Training config not found, using dedicated settings")
	return ""
}

type resetCommand struct {
	dirs []string
}

func (c *resetCommand) Description() string { return "remove generated data, models and reports" }

func (c *resetCommand) SetupFlagSet(flagSet *pflag.FlagSet, e *env) {
	flagSet.StringSliceVar(&c.dirs, "dirs", workspace.DefaultDirs, "directories to remove")
}

func (c *resetCommand) Execute(_ context.Context, e *env) error {
	e.log.Info("Cleaning up pipeline artifacts")
	if _, err := workspace.Reset(c.dirs, e.log); err != nil {
		return err
	}
	e.log.Info("Cleanup complete")
	return nil
}

type historyCommand struct {
	limit int
}

func (c *historyCommand) Description() string { return "list recorded pipeline runs, newest first" }

func (c *historyCommand) SetupFlagSet(flagSet *pflag.FlagSet, e *env) {
	flagSet.IntVar(&c.limit, "limit", 20, "maximum runs to list")
	dbFlag(flagSet, e)
}

func (c *historyCommand) Execute(ctx context.Context, e *env) error {
	if c.limit < 1 {
		return usagef("--limit must be positive")
	}
	store, err := e.Store()
	if err != nil {
		return err
	}
	runs, err := store.ListRuns(ctx, c.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(e.stdout, "no recorded runs")
		return nil
	}
	for _, r := range runs {
		printHistoryRow(e.stdout, r.RunID, r.StartedAt.Local().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt), r.NumAssets, r.Seed, r.Status, r.Error)
	}
	return nil
}
