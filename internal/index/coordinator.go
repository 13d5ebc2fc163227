// Package index coordinates the text index and the metadata store behind the
// launcher search operations.
package index

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/model"
	"github.com/Aman-CERP/launchdex/internal/notify"
	"github.com/Aman-CERP/launchdex/internal/search"
	"github.com/Aman-CERP/launchdex/internal/store"
	"github.com/Aman-CERP/launchdex/internal/telemetry"
)

// CoordinatorConfig contains configuration for the Coordinator.
type CoordinatorConfig struct {
	// Index is the text index. When nil an in-memory bleve index is created.
	Index store.TextIndex

	// BatchLimit bounds the operations one save may stage when the
	// Coordinator creates its own index. Zero means unlimited.
	BatchLimit int

	// Notifier receives "results changed" signals after saves that ask for it.
	// Nil disables notification.
	Notifier notify.Notifier

	// Metrics records every search (optional).
	Metrics *telemetry.QueryMetrics

	// MaxQueryLength rejects longer queries. Zero uses the search default.
	MaxQueryLength int
}

// ItemAction is an action of an IndexItem.
type ItemAction struct {
	ID       string
	Label    string
	Type     model.ActionType
	Shortcut *model.Shortcut
}

// IndexItem is one entrypoint as supplied by a plugin.
type IndexItem struct {
	ID          model.EntrypointID
	Name        string
	Generator   *store.Generator
	Type        model.EntrypointType
	Icon        []byte
	Frecency    float64
	Actions     []ItemAction
	Accessories []model.Accessory
}

// Stats describes the published state.
type Stats struct {
	Generation  uint64 `json:"generation"`
	Documents   uint64 `json:"documents"`
	Plugins     int    `json:"plugins"`
	Entrypoints int    `json:"entrypoints"`
}

// Coordinator owns the text index and the metadata store.
//
// Saves and removes run one at a time inside a write guard. Each successful
// mutation publishes a new generation (index snapshot plus metadata view);
// searches run against the generation current when they start and never
// block writers.
type Coordinator struct {
	config     CoordinatorConfig
	index      store.TextIndex
	metadata   *store.MetadataStore
	guard      *writeGuard
	compiler   search.Compiler
	dispatcher *notify.Dispatcher

	genMu   sync.RWMutex
	current *generation
	nextGen uint64
	closed  bool
}

// NewCoordinator creates a coordinator over an empty index.
func NewCoordinator(config CoordinatorConfig) (*Coordinator, error) {
	idx := config.Index
	if idx == nil {
		bleveIdx, err := store.NewBleveIndex(store.Options{BatchLimit: config.BatchLimit})
		if err != nil {
			return nil, lderrors.IndexError("failed to create search index", err)
		}
		idx = bleveIdx
	}

	snap, err := idx.OpenSnapshot()
	if err != nil {
		return nil, lderrors.IndexError("failed to open search index snapshot", err)
	}

	metadata := store.NewMetadataStore()
	c := &Coordinator{
		config:     config,
		index:      idx,
		metadata:   metadata,
		guard:      newWriteGuard(idx, metadata),
		compiler:   search.Compiler{MaxLength: config.MaxQueryLength},
		dispatcher: notify.NewDispatcher(config.Notifier),
	}
	c.current = newGeneration(0, snap, metadata.View())
	return c, nil
}

// SaveForPlugin replaces every document and all metadata of pluginID with items.
//
// Either the whole replacement becomes visible to searches or none of it does.
// When notifyOnSuccess is set, the notifier is signalled in the background
// after the new state is published.
func (c *Coordinator) SaveForPlugin(ctx context.Context, pluginID model.PluginID, pluginName string, items []IndexItem, notifyOnSuccess bool) error {
	slog.Debug("search_index_save_started",
		slog.String("plugin_id", string(pluginID)),
		slog.Int("items", len(items)))

	var gen uint64
	err := c.guard.run(func(w *writeAccess) error {
		if c.isClosed() {
			return closedError()
		}

		writer, err := w.index.Writer()
		if err != nil {
			return lderrors.IndexError("failed to open index writer", err)
		}
		defer writer.Close()

		if err := writer.DeleteWhere(ctx, pluginID); err != nil {
			return lderrors.IndexError("failed to delete plugin documents", err).
				WithDetail("plugin_id", string(pluginID))
		}
		for _, item := range items {
			doc := store.IndexedDocument{
				EntrypointName: item.Name,
				EntrypointID:   item.ID,
				PluginName:     pluginName,
				PluginID:       pluginID,
			}
			if err := writer.Add(doc); err != nil {
				return lderrors.IndexError("failed to add document", err).
					WithDetail("plugin_id", string(pluginID)).
					WithDetail("entrypoint_id", string(item.ID))
			}
		}
		if err := writer.Commit(); err != nil {
			return lderrors.IndexError("failed to commit search index", err).
				WithDetail("plugin_id", string(pluginID))
		}

		// The metadata store follows the committed index even if the reload
		// below fails; searches keep using the previous generation's pair.
		w.metadata.ReplacePlugin(pluginID, pluginData(pluginName, items))

		gen, err = c.reload(w)
		return err
	})
	if err != nil {
		return err
	}

	slog.Info("search_index_updated",
		slog.String("plugin_id", string(pluginID)),
		slog.Int("entrypoints", len(items)),
		slog.Uint64("generation", gen))

	if notifyOnSuccess {
		c.dispatcher.Dispatch(ctx, pluginID)
	}
	return nil
}

// RemoveForPlugin deletes every document and all metadata of pluginID.
// Other plugins are untouched.
func (c *Coordinator) RemoveForPlugin(ctx context.Context, pluginID model.PluginID) error {
	var gen uint64
	err := c.guard.run(func(w *writeAccess) error {
		if c.isClosed() {
			return closedError()
		}

		writer, err := w.index.Writer()
		if err != nil {
			return lderrors.IndexError("failed to open index writer", err)
		}
		defer writer.Close()

		if err := writer.DeleteWhere(ctx, pluginID); err != nil {
			return lderrors.IndexError("failed to delete plugin documents", err).
				WithDetail("plugin_id", string(pluginID))
		}
		if err := writer.Commit(); err != nil {
			return lderrors.IndexError("failed to commit search index", err).
				WithDetail("plugin_id", string(pluginID))
		}

		w.metadata.RemovePlugin(pluginID)

		gen, err = c.reload(w)
		return err
	})
	if err != nil {
		return err
	}

	slog.Info("search_index_plugin_removed",
		slog.String("plugin_id", string(pluginID)),
		slog.Uint64("generation", gen))
	return nil
}

// reload opens a snapshot of the committed index and publishes it with the
// current metadata. Must run inside the write guard.
func (c *Coordinator) reload(w *writeAccess) (uint64, error) {
	snap, err := w.index.OpenSnapshot()
	if err != nil {
		return 0, lderrors.IndexError("failed to reload search index", err)
	}

	c.genMu.Lock()
	c.nextGen++
	next := newGeneration(c.nextGen, snap, w.metadata.View())
	prev := c.current
	c.current = next
	c.genMu.Unlock()

	prev.release()

	slog.Debug("search_index_reload", slog.Uint64("generation", next.number))
	return next.number, nil
}

// Search returns every entrypoint matching query, highest frecency first.
func (c *Coordinator) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	start := time.Now()

	q, err := c.compiler.Compile(query)
	if err != nil {
		return nil, err
	}

	gen := c.acquire()
	if gen == nil {
		return nil, closedError()
	}
	defer gen.release()

	results, err := search.Assemble(ctx, gen.snapshot, gen.metadata, q)
	if err != nil {
		return nil, err
	}

	latency := time.Since(start)
	c.recordMetrics(query, len(results), latency)

	slog.Debug("search_completed",
		slog.Int("query_length", len(query)),
		slog.Int("results", len(results)),
		slog.Uint64("generation", gen.number),
		slog.Int64("duration_ms", latency.Milliseconds()))

	return results, nil
}

// PluginEntrypointData returns a deep copy of the metadata for inspection.
// It reflects the metadata store, independent of the published index.
func (c *Coordinator) PluginEntrypointData() map[model.PluginID]store.PluginView {
	return c.metadata.SnapshotView()
}

// Stats describes the currently published generation.
func (c *Coordinator) Stats() (Stats, error) {
	gen := c.acquire()
	if gen == nil {
		return Stats{}, closedError()
	}
	defer gen.release()

	docs, err := gen.snapshot.DocCount()
	if err != nil {
		return Stats{}, lderrors.IndexError("failed to count documents", err)
	}
	return Stats{
		Generation:  gen.number,
		Documents:   docs,
		Plugins:     gen.metadata.PluginCount(),
		Entrypoints: gen.metadata.EntrypointCount(),
	}, nil
}

// Close waits for in-flight notifications, releases the published
// generation and closes the index. Searches already running finish against
// their snapshot.
func (c *Coordinator) Close() error {
	err := c.guard.shutdown(func(w *writeAccess) error {
		c.genMu.Lock()
		if c.closed {
			c.genMu.Unlock()
			return nil
		}
		c.closed = true
		prev := c.current
		c.current = nil
		c.genMu.Unlock()

		prev.release()
		if err := w.index.Close(); err != nil {
			return lderrors.IndexError("failed to close search index", err)
		}
		return nil
	})
	c.dispatcher.Wait()
	return err
}

// acquire returns the current generation with a reference held, or nil
// after Close.
func (c *Coordinator) acquire() *generation {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	if c.current == nil {
		return nil
	}
	c.current.acquire()
	return c.current
}

func (c *Coordinator) isClosed() bool {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	return c.closed
}

func (c *Coordinator) recordMetrics(query string, resultCount int, latency time.Duration) {
	if c.config.Metrics == nil {
		return
	}
	queryType := telemetry.QueryTypeFilter
	if strings.TrimSpace(query) == "" {
		queryType = telemetry.QueryTypeBrowse
	}
	c.config.Metrics.Record(telemetry.QueryEvent{
		Query:       query,
		QueryType:   queryType,
		ResultCount: resultCount,
		Latency:     latency,
		Timestamp:   time.Now(),
	})
}

func closedError() error {
	return lderrors.New(lderrors.ErrCodeIndexClosed, "search index is closed", nil)
}

// pluginData converts plugin items into their metadata record. A repeated
// entrypoint id keeps the last item, matching the index where the last add
// of a document id wins.
func pluginData(name string, items []IndexItem) store.PluginData {
	data := store.PluginData{
		Name:        name,
		Entrypoints: make(map[model.EntrypointID]store.EntrypointData, len(items)),
	}
	for _, item := range items {
		actions := make([]store.ActionData, len(item.Actions))
		for i, a := range item.Actions {
			actions[i] = store.ActionData{
				ID:       a.ID,
				Label:    a.Label,
				Kind:     actionKind(a.Type),
				Shortcut: a.Shortcut,
			}
		}
		data.Entrypoints[item.ID] = store.EntrypointData{
			Name:        item.Name,
			Generator:   item.Generator,
			Type:        item.Type,
			Icon:        item.Icon,
			Frecency:    item.Frecency,
			Actions:     actions,
			Accessories: item.Accessories,
		}
	}
	return data
}

func actionKind(t model.ActionType) store.ActionKind {
	if t == model.ActionView {
		return store.ActionKindView
	}
	return store.ActionKindCommand
}
