package app

import (
	"log/slog"
	"sync"

	"linfer.allora.network/internal/appconf"
	"linfer.allora.network/internal/inference"
	"linfer.allora.network/internal/logging"
	"linfer.allora.network/internal/metrics"
)

// Application holds the dependencies shared by the CLI, the HTTP handlers,
// helpers and middleware.
type Application struct {
	// Config is the configuration the application started with. Reloaded
	// settings are only visible through CurrentConfig.
	Config    appconf.Config
	Logger    *slog.Logger
	Generator *inference.Generator
	Metrics   *metrics.Fixture

	mu      sync.RWMutex
	current appconf.Config
}

// New wires an Application from cfg. A nil clock selects the system one. A
// nil random source selects a seeded one when cfg sets a seed, the system
// one otherwise.
func New(cfg appconf.Config, logger *slog.Logger, clock inference.Clock, rand inference.RandomSource) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rand == nil && cfg.Model.Seed != 0 {
		rand = inference.NewSeededSource(cfg.Model.Seed)
	}

	generator, err := inference.NewGenerator(cfg.Params(), clock, rand)
	if err != nil {
		return nil, err
	}

	app := &Application{
		Config:    cfg,
		Logger:    logger,
		Generator: generator,
		Metrics:   metrics.NewFixture(),
		current:   cfg,
	}
	app.Metrics.MaxDeviation.Set(float64(cfg.Model.MaxDeviation))
	return app, nil
}

// CurrentConfig is the startup configuration with the reloadable settings,
// the model section and the output format, as last reloaded.
func (app *Application) CurrentConfig() appconf.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.current
}

// Reload applies the model section and output format of cfg. Other settings
// such as the port or API keys only take effect on restart. On error
// nothing changes.
func (app *Application) Reload(cfg appconf.Config) error {
	if cfg.Format != "" {
		if _, err := inference.ParseFormat(cfg.Format, inference.FormatPyDict); err != nil {
			return err
		}
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	params := cfg.Params()
	if err := app.Generator.SetParams(params); err != nil {
		return err
	}
	app.current.Model = cfg.Model
	app.current.Format = cfg.Format

	app.Metrics.MaxDeviation.Set(float64(params.MaxDeviation))
	logging.LogOperation(app.Logger, "model_reloaded",
		slog.Float64("slope", params.Slope),
		slog.Float64("intercept", params.Intercept),
		slog.Int64("max_deviation", params.MaxDeviation),
		slog.String("timezone", params.Location),
		slog.String("format", cfg.Format))
	return nil
}

// DefaultFormat is the current output format, or fallback when unset.
func (app *Application) DefaultFormat(fallback inference.Format) inference.Format {
	f, err := inference.ParseFormat(app.CurrentConfig().Format, fallback)
	if err != nil {
		return fallback
	}
	return f
}
