// Package store provides the in-memory text index (bleve) and the metadata
// store that together back the launcher search index.
package store

import (
	"context"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/launchdex/internal/model"
)

// Indexed field names.
const (
	FieldEntrypointName = "entrypoint_name"
	FieldEntrypointID   = "entrypoint_id"
	FieldPluginName     = "plugin_name"
	FieldPluginID       = "plugin_id"
)

// docIDSeparator joins plugin and entrypoint ids into a document id.
// U+001F (unit separator) does not appear in manifest identifiers.
const docIDSeparator = "\x1f"

// IndexedDocument is one (plugin, entrypoint) pair in the text index.
// EntrypointName and PluginName are tokenized; the ids are exact terms.
type IndexedDocument struct {
	EntrypointName string
	EntrypointID   model.EntrypointID
	PluginName     string
	PluginID       model.PluginID
}

// DocID returns the document id, unique per (plugin, entrypoint) pair.
func (d IndexedDocument) DocID() string {
	return DocID(d.PluginID, d.EntrypointID)
}

// DocID builds the document id for a (plugin, entrypoint) pair.
func DocID(pluginID model.PluginID, entrypointID model.EntrypointID) string {
	return string(pluginID) + docIDSeparator + string(entrypointID)
}

// Hit is a document returned from a snapshot search, with its stored fields.
type Hit struct {
	DocID          string
	EntrypointName string
	EntrypointID   model.EntrypointID
	PluginName     string
	PluginID       model.PluginID
}

// TextIndex is an inverted index over the four IndexedDocument fields.
//
// Mutation goes through a single IndexWriter; opening a second writer while
// one is open is a programming error and panics. Reads go through snapshots
// that are fixed at the moment they were opened.
type TextIndex interface {
	// Writer opens the single writer handle.
	Writer() (IndexWriter, error)

	// OpenSnapshot returns a read view of the last committed state.
	OpenSnapshot() (Snapshot, error)

	// Close releases the index. Open snapshots stay readable until closed.
	Close() error
}

// IndexWriter stages changes and applies them atomically on Commit.
type IndexWriter interface {
	// Add stages a document.
	Add(doc IndexedDocument) error

	// DeleteWhere stages deletion of every committed document whose
	// plugin_id exactly equals pluginID.
	DeleteWhere(ctx context.Context, pluginID model.PluginID) error

	// Commit applies staged changes. Snapshots opened earlier do not see them.
	Commit() error

	// Close discards uncommitted changes and releases the writer handle.
	Close()
}

// Snapshot is an immutable read view of the index, safe for concurrent use.
type Snapshot interface {
	// Search returns up to size hits matching q, skipping offset hits.
	// Hits are ordered by document id so consecutive pages never overlap.
	Search(ctx context.Context, q query.Query, offset, size int) ([]Hit, error)

	// DocCount returns the number of documents in the snapshot.
	DocCount() (uint64, error)

	// Close releases the snapshot.
	Close() error
}
