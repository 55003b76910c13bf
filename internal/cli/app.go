package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/lazypower/cadence/internal/config"
	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/logging"
	"github.com/lazypower/cadence/internal/metrics"
	"github.com/lazypower/cadence/internal/store"
)

// app is what every command that touches the database needs.
type app struct {
	cfg     *config.Config
	db      *store.DB
	engine  *engine.Engine
	log     *slog.Logger
	metrics *metrics.Manager
	closers []io.Closer
}

// loadConfig merges the config file, environment and the global flags.
func loadConfig() (*config.Config, error) {
	overrides := map[string]any{}
	if dbPath != "" {
		overrides["database.path"] = dbPath
	}
	if logLevel != "" {
		overrides["log.level"] = logLevel
	}
	return config.Load(cfgFile, overrides)
}

// openApp loads config and opens the database and engine. withMetrics
// is false for one-shot commands, which have nobody to scrape them.
func openApp(withMetrics bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, logCloser, err := logging.New(cfg.Logging())
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	a := &app{cfg: cfg, log: log, closers: []io.Closer{logCloser}}

	path := cfg.Database.Path
	if path == "" {
		path, err = store.DefaultDBPath()
		if err != nil {
			a.close()
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	a.db, err = store.Open(path)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, a.db)

	boundary, err := cfg.Scheduler.DayBoundary()
	if err != nil {
		a.close()
		return nil, err
	}

	a.metrics = metrics.NoOpManager()
	if withMetrics {
		a.metrics = metrics.NewManager(cfg.MetricsConfig())
	}
	a.engine, err = engine.New(a.db, engine.Options{
		Logger:      log,
		Metrics:     a.metrics,
		DayBoundary: boundary,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.engine != nil {
		a.engine.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}
