package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"

	"lightspeed/internal/catalog"
	"lightspeed/internal/config"
	"lightspeed/internal/logging"
	"lightspeed/internal/noise"
	"lightspeed/internal/repository/sqlstore"
	"lightspeed/internal/service"
	"lightspeed/internal/synth"
)

// env holds the settings and lazily opened resources shared by commands
type env struct {
	cfg     *config.Config
	cfgPath string
	log     *logrus.Logger
	stdout  io.Writer
	stderr  io.Writer

	store   *sqlstore.Store
	catalog *catalog.Catalog
}

func newEnv(g globalFlags, stdout, stderr io.Writer) (*env, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if g.settings != "" {
		cfg, path, err = config.LoadFromPath(g.settings)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	log, err := logging.New(stderr, level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	if path != "" {
		log.Debugf("Settings loaded from %s", path)
	}
	log.Debug(cfg.Summary())

	return &env{cfg: cfg, cfgPath: path, log: log, stdout: stdout, stderr: stderr}, nil
}

// Store opens the configured relational store once
func (e *env) Store() (*sqlstore.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	driver, source := e.cfg.DataSource()
	opts := []sqlstore.Option{sqlstore.WithLogger(e.log)}
	if e.cfg.Database.BusyTimeout != nil {
		opts = append(opts, sqlstore.WithBusyTimeout(e.cfg.Database.BusyTimeout.Duration()))
	}
	store, err := sqlstore.Open(driver, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	e.log.WithField("driver", driver).Debugf("Database opened: %s", source)
	e.store = store
	return store, nil
}

// Catalog returns the built-in catalog or the configured override
func (e *env) Catalog() (*catalog.Catalog, error) {
	if e.catalog != nil {
		return e.catalog, nil
	}
	if e.cfg.Generation.Catalog == "" {
		e.catalog = catalog.Default()
		return e.catalog, nil
	}
	c, err := catalog.Load(e.cfg.Generation.Catalog)
	if err != nil {
		return nil, err
	}
	e.catalog = c
	return c, nil
}

// NoiseConfig reads the noise rates, using the built-in rates when the file does not exist
func (e *env) NoiseConfig(path string) (noise.Config, error) {
	cfg, err := noise.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		e.log.WithField("path", path).Warn("Noise config not found, using built-in rates")
		return noise.DefaultConfig(), nil
	}
	return cfg, err
}

// Datasets builds the generator and noise injector. It does not open the store.
func (e *env) Datasets(noisePath string) (*service.DatasetService, error) {
	cat, err := e.Catalog()
	if err != nil {
		return nil, err
	}
	gen, err := synth.New(cat, synth.WithLogger(e.log), synth.WithMaxAttempts(e.cfg.Generation.MaxAttempts))
	if err != nil {
		return nil, err
	}
	noiseCfg, err := e.NoiseConfig(noisePath)
	if err != nil {
		return nil, err
	}
	inj, err := noise.NewInjector(noiseCfg, cat, e.log)
	if err != nil {
		return nil, err
	}
	return service.NewDatasetService(gen, inj, e.log), nil
}

// Pipeline wires the stage services over the store
func (e *env) Pipeline(noisePath string, bus *service.EventBus) (*service.Pipeline, error) {
	datasets, err := e.Datasets(noisePath)
	if err != nil {
		return nil, err
	}
	store, err := e.Store()
	if err != nil {
		return nil, err
	}
	cat, err := e.Catalog()
	if err != nil {
		return nil, err
	}
	return service.NewPipeline(store, datasets, service.NewPrepareService(store, cat, e.log), bus, e.log), nil
}

// Close releases the store
func (e *env) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.log.WithError(err).Warn("Failed to close database")
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
