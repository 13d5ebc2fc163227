package plugin

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/index"
	"github.com/Aman-CERP/launchdex/internal/model"
)

// LoadDir loads every manifest directly inside dir, in parallel, sorted by
// plugin id. Any invalid manifest fails the whole load; two manifests with
// the same plugin id are an error.
func LoadDir(ctx context.Context, dir string) ([]*Plugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lderrors.New(lderrors.ErrCodeManifestNotFound, "plugin directory not found", err).
				WithDetail("path", dir).
				WithSuggestion("create the directory or set plugins.dir")
		}
		return nil, lderrors.ManifestError("failed to list plugin directory", err).WithDetail("path", dir)
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && IsManifest(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	plugins := make([]*Plugin, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := LoadFile(path)
			if err != nil {
				return err
			}
			plugins[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(plugins, func(i, j int) bool { return plugins[i].ID < plugins[j].ID })
	for i := 1; i < len(plugins); i++ {
		if plugins[i].ID == plugins[i-1].ID {
			return nil, lderrors.ManifestError("duplicate plugin id", nil).
				WithDetail("plugin_id", string(plugins[i].ID)).
				WithDetail("path", plugins[i-1].Path+", "+plugins[i].Path)
		}
	}

	slog.Debug("plugin_manifests_loaded",
		slog.String("dir", dir),
		slog.Int("plugins", len(plugins)))
	return plugins, nil
}

// Sync saves every plugin into c without notification and returns the
// number of entrypoints indexed.
func Sync(ctx context.Context, c *index.Coordinator, plugins []*Plugin) (int, error) {
	total := 0
	for _, p := range plugins {
		if err := c.SaveForPlugin(ctx, p.ID, p.Name, p.Items, false); err != nil {
			return total, err
		}
		total += len(p.Items)
	}
	return total, nil
}

// IDs returns the plugin ids of plugins.
func IDs(plugins []*Plugin) []model.PluginID {
	ids := make([]model.PluginID, len(plugins))
	for i, p := range plugins {
		ids[i] = p.ID
	}
	return ids
}
