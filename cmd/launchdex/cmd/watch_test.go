package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/launchdex/internal/index"
	"github.com/Aman-CERP/launchdex/internal/notify"
	"github.com/Aman-CERP/launchdex/internal/output"
	"github.com/Aman-CERP/launchdex/internal/plugin"
	"github.com/Aman-CERP/launchdex/internal/watcher"
)

type applierFixture struct {
	dir      string
	coord    *index.Coordinator
	applier  *manifestApplier
	notified atomic.Int32
	out      bytes.Buffer
}

func newApplierFixture(t *testing.T) *applierFixture {
	t.Helper()
	f := &applierFixture{dir: t.TempDir()}
	writeManifest(t, f.dir, "dev.yaml", devManifest)

	counter := notify.Func(func(context.Context) error {
		f.notified.Add(1)
		return nil
	})
	coord, err := index.NewCoordinator(index.CoordinatorConfig{Notifier: counter})
	require.NoError(t, err)
	t.Cleanup(func() { _ = coord.Close() })

	plugins, err := plugin.LoadDir(context.Background(), f.dir)
	require.NoError(t, err)
	_, err = plugin.Sync(context.Background(), coord, plugins)
	require.NoError(t, err)

	f.coord = coord
	f.applier = newManifestApplier(coord, plugins, counter, output.NewWithStyles(&f.out, output.FormatText, output.PlainStyles()))
	return f
}

func (f *applierFixture) apply(t *testing.T, name string, op watcher.Operation) {
	t.Helper()
	ev := watcher.Event{Path: filepath.Join(f.dir, name), Operation: op, Timestamp: time.Now()}
	require.NoError(t, f.applier.apply(context.Background(), ev))
}

func (f *applierFixture) ids(t *testing.T, query string) []string {
	t.Helper()
	results, err := f.coord.Search(context.Background(), query)
	require.NoError(t, err)
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, string(r.PluginID)+"/"+string(r.EntrypointID))
	}
	return ids
}

// waitNotified polls because notifications are delivered in the background.
func (f *applierFixture) waitNotified(t *testing.T, want int32) {
	t.Helper()
	assert.Eventually(t, func() bool { return f.notified.Load() == want }, time.Second, 5*time.Millisecond)
}

func TestManifestApplier_CreateModifyDelete(t *testing.T) {
	f := newApplierFixture(t)
	assert.Equal(t, []string{"dev/term", "dev/logs"}, f.ids(t, ""))

	// Given: a new manifest
	writeManifest(t, f.dir, "clip.yaml", clipManifest)
	f.apply(t, "clip.yaml", watcher.OpCreate)
	assert.Equal(t, []string{"dev/term", "clip/history", "dev/logs"}, f.ids(t, ""))
	f.waitNotified(t, 1)

	// When: the dev manifest drops an entrypoint
	writeManifest(t, f.dir, "dev.yaml", "id: dev\nname: Dev Tools\nentrypoints:\n  - id: logs\n    name: Tail Logs\n")
	f.apply(t, "dev.yaml", watcher.OpModify)

	// Then: only that plugin changed
	assert.Equal(t, []string{"clip/history", "dev/logs"}, f.ids(t, ""))
	f.waitNotified(t, 2)

	// When: the clip manifest is deleted
	require.NoError(t, os.Remove(filepath.Join(f.dir, "clip.yaml")))
	f.apply(t, "clip.yaml", watcher.OpDelete)

	// Then: its entrypoints are gone and the front end is told
	assert.Equal(t, []string{"dev/logs"}, f.ids(t, ""))
	f.waitNotified(t, 3)

	// Deleting an unknown manifest is a no-op
	f.apply(t, "other.yaml", watcher.OpDelete)
	assert.Equal(t, int32(3), f.notified.Load())
}

func TestManifestApplier_InvalidManifestKeepsIndex(t *testing.T) {
	f := newApplierFixture(t)

	// When: the dev manifest becomes invalid
	writeManifest(t, f.dir, "dev.yaml", "name: Dev Tools\nentrypoints:\n  - id: term\n    name: \"\"\n")
	f.apply(t, "dev.yaml", watcher.OpModify)

	// Then: the previous entrypoints remain and a warning is printed
	assert.Equal(t, []string{"dev/term", "dev/logs"}, f.ids(t, ""))
	assert.Contains(t, f.out.String(), "dev.yaml")
	assert.Equal(t, int32(0), f.notified.Load())
}

func TestManifestApplier_DuplicatePluginIDIsRejected(t *testing.T) {
	f := newApplierFixture(t)

	// When: a second manifest claims the dev plugin id
	writeManifest(t, f.dir, "copy.yaml", "id: dev\nname: Copy\nentrypoints:\n  - id: x\n    name: Copy Thing\n")
	f.apply(t, "copy.yaml", watcher.OpCreate)

	// Then: the original plugin is untouched
	assert.Equal(t, []string{"dev/term", "dev/logs"}, f.ids(t, ""))
	assert.Contains(t, f.out.String(), "already belongs to")
}

func TestManifestApplier_RenamedPluginID(t *testing.T) {
	f := newApplierFixture(t)

	// When: dev.yaml switches to a different plugin id
	writeManifest(t, f.dir, "dev.yaml", "id: tools\nname: Tools\nentrypoints:\n  - id: term\n    name: Open Terminal\n")
	f.apply(t, "dev.yaml", watcher.OpModify)

	// Then: the old plugin is removed, the new one indexed
	assert.Equal(t, []string{"tools/term"}, f.ids(t, ""))
	_, ok := f.coord.PluginEntrypointData()["dev"]
	assert.False(t, ok)
}

func TestManifestApplier_ClosedCoordinatorIsFatal(t *testing.T) {
	f := newApplierFixture(t)
	require.NoError(t, f.coord.Close())

	err := f.applier.apply(context.Background(), watcher.Event{
		Path:      filepath.Join(f.dir, "dev.yaml"),
		Operation: watcher.OpModify,
	})
	assert.Error(t, err)
}
