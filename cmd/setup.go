package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/smart-resource-management-trier/phorecast/internal/config"
	"github.com/smart-resource-management-trier/phorecast/internal/engine"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
	"github.com/smart-resource-management-trier/phorecast/internal/metrics"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence/artifact"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence/filemeta"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence/influxstore"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence/memstore"
)

// app bundles everything a command needs after setup.
type app struct {
	cfg     *config.Config
	series  persistence.SeriesStore
	meta    *filemeta.Store
	engine  *engine.Engine
	metrics *metrics.Metrics

	closers []func()
}

// setup loads the configuration, builds the logger context and opens the
// stores.
func setup(ctx context.Context) (context.Context, *app, error) {
	cfg, err := config.Load(config.WithConfigFile(cfgFile))
	if err != nil {
		return ctx, nil, err
	}

	opts := []logger.Option{logger.WithFormat(cfg.Global.LogFormat)}
	if cfg.Global.Debug {
		opts = append(opts, logger.WithDebug())
	}
	if cfg.Global.Quiet {
		opts = append(opts, logger.WithQuiet())
	}
	ctx = logger.WithLogger(ctx, logger.NewLogger(opts...))
	for _, warning := range cfg.Warnings {
		logger.Warn(ctx, warning)
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0750); err != nil {
		return ctx, nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	a := &app{cfg: cfg, metrics: metrics.New()}

	switch cfg.Store.Backend {
	case "influxdb":
		store := influxstore.New(cfg.Store.InfluxDB)
		a.series = store
		a.closers = append(a.closers, store.Close)
	default:
		a.series = memstore.New()
	}

	a.meta, err = filemeta.New(cfg.Paths.MetadataFile)
	if err != nil {
		a.close()
		return ctx, nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	a.engine, err = engine.New(engine.Config{
		Interval:      cfg.Engine.Interval,
		Schedule:      cfg.Engine.Schedule,
		MaxActiveRuns: cfg.Engine.MaxActiveRuns,
	}, a.series, a.meta, artifact.New(cfg.Paths.ArtifactDir), a.metrics)
	if err != nil {
		a.close()
		return ctx, nil, err
	}
	return ctx, a, nil
}

func (a *app) close() {
	for _, fn := range a.closers {
		fn()
	}
}
