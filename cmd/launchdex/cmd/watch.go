package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/launchdex/internal/config"
	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/index"
	"github.com/Aman-CERP/launchdex/internal/model"
	"github.com/Aman-CERP/launchdex/internal/notify"
	"github.com/Aman-CERP/launchdex/internal/output"
	"github.com/Aman-CERP/launchdex/internal/plugin"
	"github.com/Aman-CERP/launchdex/internal/watcher"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var polling bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index current while manifests change",
		Long: `Index every manifest, then watch the plugin directory. A created or
modified manifest replaces that plugin's entrypoints; a deleted manifest
removes the plugin. A line is printed each time search results may have
changed. Only one watch session may run per plugin directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, root.cfg, root.writer(cmd), polling)
		},
	}

	cmd.Flags().BoolVar(&polling, "poll", false, "Poll the directory instead of using file system notifications")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, out *output.Writer, polling bool) error {
	lock, err := watcher.AcquireSessionLock(watcher.LockPath(config.DataDir(), cfg.Plugins.Dir))
	if err != nil {
		if errors.Is(err, watcher.ErrAlreadyWatching) {
			return lderrors.ValidationError("another watch session is running", err).
				WithDetail("dir", cfg.Plugins.Dir)
		}
		return err
	}
	defer func() { _ = lock.Release() }()

	var notifier notify.Notifier
	if cfg.Notify.Enabled {
		notifier = notify.NewWriter(cmd.OutOrStdout())
	}

	eng, err := openEngine(ctx, cfg, notifier)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Warn("engine_close_failed", slog.String("error", err.Error()))
		}
	}()

	w, err := watcher.New(cfg.Plugins.Dir, watcher.Options{
		DebounceWindow: cfg.WatchDebounce(),
		Filter:         plugin.IsManifest,
		ForcePolling:   polling,
	})
	if err != nil {
		return lderrors.ConfigError("failed to watch plugin directory", err).
			WithDetail("dir", cfg.Plugins.Dir)
	}

	applier := newManifestApplier(eng.coord, eng.plugins, notifier, out)

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	out.Info("watching %s (%s), %d plugins indexed", w.Dir(), w.Mode(), len(eng.plugins))

	watchErrors := w.Errors()
	for {
		select {
		case batch, ok := <-w.Events():
			if !ok {
				return watchResult(<-runErr)
			}
			for _, ev := range batch {
				if err := applier.apply(ctx, ev); err != nil {
					_ = w.Stop()
					<-runErr
					return err
				}
			}
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		case <-ctx.Done():
			return watchResult(<-runErr)
		}
	}
}

func watchResult(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// manifestApplier turns manifest file events into coordinator mutations.
type manifestApplier struct {
	coord    *index.Coordinator
	notifier notify.Notifier
	out      *output.Writer

	// owners maps a manifest path to the plugin id it last indexed.
	owners map[string]model.PluginID
}

func newManifestApplier(coord *index.Coordinator, plugins []*plugin.Plugin, notifier notify.Notifier, out *output.Writer) *manifestApplier {
	owners := make(map[string]model.PluginID, len(plugins))
	for _, p := range plugins {
		owners[absPath(p.Path)] = p.ID
	}
	return &manifestApplier{coord: coord, notifier: notifier, out: out, owners: owners}
}

// apply handles one event. Invalid manifests are reported and leave the
// index unchanged; only coordinator failures are returned.
func (a *manifestApplier) apply(ctx context.Context, ev watcher.Event) error {
	ev.Path = absPath(ev.Path)
	if ev.Operation == watcher.OpDelete {
		return a.remove(ctx, ev.Path)
	}

	p, err := plugin.LoadFile(ev.Path)
	if err != nil {
		attrs := append(lderrors.LogAttrs(err), slog.String("path", ev.Path))
		slog.LogAttrs(ctx, slog.LevelWarn, "manifest_rejected", attrs...)
		a.out.Warning("%s: %v", ev.Path, err)
		return nil
	}

	for path, id := range a.owners {
		if id == p.ID && path != ev.Path {
			slog.Warn("manifest_duplicate_plugin_id",
				slog.String("path", ev.Path),
				slog.String("plugin_id", string(p.ID)),
				slog.String("owner", path))
			a.out.Warning("%s: plugin id %q already belongs to %s", ev.Path, p.ID, path)
			return nil
		}
	}

	if prev, ok := a.owners[ev.Path]; ok && prev != p.ID {
		if err := a.coord.RemoveForPlugin(ctx, prev); err != nil {
			return err
		}
	}
	if err := a.coord.SaveForPlugin(ctx, p.ID, p.Name, p.Items, true); err != nil {
		return err
	}
	a.owners[ev.Path] = p.ID

	slog.Info("manifest_applied",
		slog.String("path", ev.Path),
		slog.String("operation", ev.Operation.String()),
		slog.String("plugin_id", string(p.ID)),
		slog.Int("entrypoints", len(p.Items)))
	return nil
}

func (a *manifestApplier) remove(ctx context.Context, path string) error {
	id, ok := a.owners[path]
	if !ok {
		return nil
	}
	if err := a.coord.RemoveForPlugin(ctx, id); err != nil {
		return err
	}
	delete(a.owners, path)

	slog.Info("manifest_removed", slog.String("path", path), slog.String("plugin_id", string(id)))
	if a.notifier != nil {
		if err := a.notifier.NotifyResultsChanged(ctx); err != nil {
			slog.Warn("notify_failed", slog.String("plugin_id", string(id)), slog.String("error", err.Error()))
		}
	}
	return nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
