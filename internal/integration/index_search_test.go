package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/launchdex/internal/index"
	"github.com/Aman-CERP/launchdex/internal/model"
	"github.com/Aman-CERP/launchdex/internal/plugin"
	"github.com/Aman-CERP/launchdex/internal/telemetry"
)

// Integration tests: manifests on disk through the coordinator to ranked
// results, with telemetry persisted to SQLite.

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func manifest(id, name string, entrypoints ...string) string {
	s := fmt.Sprintf("id: %s\nname: %s\nentrypoints:\n", id, name)
	for i, ep := range entrypoints {
		s += fmt.Sprintf("  - id: e%d\n    name: %s\n    frecency: %d\n", i, ep, len(entrypoints)-i)
	}
	return s
}

func loadCoordinator(t *testing.T, dir string, cfg index.CoordinatorConfig) *index.Coordinator {
	t.Helper()
	c, err := index.NewCoordinator(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	plugins, err := plugin.LoadDir(context.Background(), dir)
	require.NoError(t, err)
	_, err = plugin.Sync(context.Background(), c, plugins)
	require.NoError(t, err)
	return c
}

func names(results []model.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.EntrypointName
	}
	return out
}

func TestManifestsToResults(t *testing.T) {
	// Given: three plugins on disk
	dir := t.TempDir()
	writeManifest(t, dir, "dev.yaml", manifest("dev", "Dev Tools", "Open Terminal", "Git Status"))
	writeManifest(t, dir, "clip.yaml", "name: Clipboard\nentrypoints:\n  - id: history\n    name: Clipboard History\n    frecency: 0.5\n")
	writeManifest(t, dir, "calc.yaml", `name: Calculator
entrypoints:
  - id: gen-1
    name: "2 + 2 = 4"
    type: generated-command
    frecency: 5
    generator:
      id: calc
      name: Calculator Term Evaluator
`)

	c := loadCoordinator(t, dir, index.CoordinatorConfig{})

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"2 + 2 = 4", "Open Terminal", "Git Status", "Clipboard History"}},
		{"term", []string{"2 + 2 = 4", "Open Terminal"}},
		{"clip hist", []string{"Clipboard History"}},
		{"STATUS", []string{"Git Status"}},
		{"nope", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results, err := c.Search(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(results))
		})
	}

	// Then: the generated result carries its generator and the index is consistent
	results, err := c.Search(context.Background(), "evaluator")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Calculator Term Evaluator", results[0].EntrypointGeneratorName)
	assert.Equal(t, model.EntrypointGeneratedCommand, results[0].EntrypointType)

	check, err := index.NewConsistencyChecker(c).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, check.OK(), "%+v", check.Inconsistencies)
	assert.Equal(t, 4, check.Checked)
}

func TestConcurrentReloadsAndSearches(t *testing.T) {
	// Given: ten plugins
	dir := t.TempDir()
	for i := 0; i < 10; i++ {
		writeManifest(t, dir, fmt.Sprintf("p%d.yaml", i),
			manifest(fmt.Sprintf("p%d", i), fmt.Sprintf("Plugin %d", i), "Alpha Item", "Beta Item"))
	}
	c := loadCoordinator(t, dir, index.CoordinatorConfig{})

	// When: every plugin is reloaded from disk repeatedly while searches run
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 10; i++ {
		path := filepath.Join(dir, fmt.Sprintf("p%d.yaml", i))
		g.Go(func() error {
			for round := 0; round < 3; round++ {
				p, err := plugin.LoadFile(path)
				if err != nil {
					return err
				}
				if err := c.SaveForPlugin(ctx, p.ID, p.Name, p.Items, false); err != nil {
					return err
				}
			}
			return nil
		})
		g.Go(func() error {
			for round := 0; round < 5; round++ {
				results, err := c.Search(ctx, "item")
				if err != nil {
					return err
				}
				// Replacements are atomic: a plugin never shows half its items.
				perPlugin := map[model.PluginID]int{}
				for _, r := range results {
					perPlugin[r.PluginID]++
				}
				for id, n := range perPlugin {
					if n != 2 {
						return fmt.Errorf("plugin %s has %d results", id, n)
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// Then: everything is indexed exactly once
	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(20), stats.Documents)
	assert.Equal(t, 10, stats.Plugins)
	assert.Equal(t, uint64(40), stats.Generation)
}

func TestTelemetryPersistsAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "dev.yaml", manifest("dev", "Dev Tools", "Open Terminal"))
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")

	session := func(queries ...string) {
		st, err := telemetry.OpenSQLiteStore(dbPath, 10)
		require.NoError(t, err)
		metrics := telemetry.NewQueryMetrics(st)
		c := loadCoordinator(t, dir, index.CoordinatorConfig{Metrics: metrics})
		for _, q := range queries {
			_, err := c.Search(context.Background(), q)
			require.NoError(t, err)
		}
		require.NoError(t, c.Close())
		require.NoError(t, metrics.Close())
		require.NoError(t, st.Close())
	}

	// Given: two sessions of searches
	session("term", "", "missing")
	session("term")

	// When: reading the persisted report
	st, err := telemetry.OpenSQLiteStore(dbPath, 10)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	report, err := st.Report(1, 5)
	require.NoError(t, err)

	// Then: counts from both sessions add up
	assert.Equal(t, int64(4), report.TotalQueries)
	assert.Equal(t, int64(1), report.QueryTypeCounts[telemetry.QueryTypeBrowse])
	assert.Equal(t, int64(3), report.QueryTypeCounts[telemetry.QueryTypeFilter])
	assert.Equal(t, []string{"missing"}, report.ZeroResultQueries)
	require.NotEmpty(t, report.TopTerms)
	assert.Equal(t, telemetry.TermCount{Term: "term", Count: 2}, report.TopTerms[0])
}
