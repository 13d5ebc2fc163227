package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Aman-CERP/launchdex/internal/config"
	"github.com/Aman-CERP/launchdex/internal/index"
	"github.com/Aman-CERP/launchdex/internal/notify"
	"github.com/Aman-CERP/launchdex/internal/plugin"
	"github.com/Aman-CERP/launchdex/internal/telemetry"
)

// engine is a coordinator loaded with every plugin manifest, plus the
// optional telemetry behind it.
type engine struct {
	coord   *index.Coordinator
	plugins []*plugin.Plugin
	metrics *telemetry.QueryMetrics
	store   *telemetry.SQLiteMetricsStore
}

// openEngine builds the index from cfg.Plugins.Dir. notifier may be nil.
func openEngine(ctx context.Context, cfg *config.Config, notifier notify.Notifier) (*engine, error) {
	start := time.Now()
	e := &engine{}

	if cfg.Telemetry.Enabled {
		st, err := telemetry.OpenSQLiteStore(cfg.Telemetry.DBPath, cfg.Telemetry.ZeroResultBuffer)
		if err != nil {
			// Searching works without metrics.
			slog.Warn("telemetry_unavailable",
				slog.String("path", cfg.Telemetry.DBPath),
				slog.String("error", err.Error()))
		} else {
			e.store = st
			e.metrics = telemetry.NewQueryMetricsWithConfig(st, telemetry.QueryMetricsConfig{
				TopTermsCapacity:      cfg.Telemetry.TopTerms,
				ZeroResultsCapacity:   cfg.Telemetry.ZeroResultBuffer,
				RecentQueriesCapacity: cfg.Telemetry.RecentQueries,
				FlushInterval:         cfg.FlushInterval(),
			})
		}
	}

	coord, err := index.NewCoordinator(index.CoordinatorConfig{
		BatchLimit:     cfg.Search.BatchLimit,
		Notifier:       notifier,
		Metrics:        e.metrics,
		MaxQueryLength: cfg.Search.MaxQueryLength,
	})
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.coord = coord

	plugins, err := plugin.LoadDir(ctx, cfg.Plugins.Dir)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.plugins = plugins

	entrypoints, err := plugin.Sync(ctx, coord, plugins)
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	slog.Info("plugins_indexed",
		slog.String("dir", cfg.Plugins.Dir),
		slog.Int("plugins", len(plugins)),
		slog.Int("entrypoints", entrypoints),
		slog.Duration("duration", time.Since(start)))
	return e, nil
}

// Close shuts the coordinator down, then flushes and closes telemetry.
func (e *engine) Close() error {
	var errs []error
	if e.coord != nil {
		errs = append(errs, e.coord.Close())
	}
	if e.metrics != nil {
		errs = append(errs, e.metrics.Close())
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}
