package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/collector"
	"github.com/blevesearch/bleve/v2/search/query"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/Aman-CERP/launchdex/internal/model"
)

var (
	// ErrIndexClosed is returned by operations on a closed index.
	ErrIndexClosed = errors.New("index is closed")

	// ErrBatchLimit is returned when a writer stages more operations than
	// Options.BatchLimit allows.
	ErrBatchLimit = errors.New("writer batch limit exceeded")
)

// Options configures a BleveIndex.
type Options struct {
	// BatchLimit caps the operations one writer may stage before Commit.
	// Zero means unlimited.
	BatchLimit int
}

// BleveIndex is an in-memory TextIndex backed by bleve's scorch engine.
type BleveIndex struct {
	mu         sync.RWMutex
	index      bleve.Index
	advanced   index.Index
	opts       Options
	closed     bool
	writerOpen atomic.Bool
}

// bleveDocument is the document structure for bleve indexing.
type bleveDocument struct {
	EntrypointName string `json:"entrypoint_name"`
	EntrypointID   string `json:"entrypoint_id"`
	PluginName     string `json:"plugin_name"`
	PluginID       string `json:"plugin_id"`
}

// NewBleveIndex creates an empty in-memory index.
func NewBleveIndex(opts Options) (*BleveIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	advanced, err := idx.Advanced()
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to access index internals: %w", err)
	}

	return &BleveIndex{
		index:    idx,
		advanced: advanced,
		opts:     opts,
	}, nil
}

// createIndexMapping maps the two prose fields through the launcher analyzer
// and the two id fields as single exact keyword terms.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(AnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": TokenizerName,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = AnalyzerName

	prose := func() *mapping.FieldMapping {
		m := bleve.NewTextFieldMapping()
		m.Analyzer = AnalyzerName
		m.Store = true
		m.IncludeInAll = false
		return m
	}
	exact := func() *mapping.FieldMapping {
		m := bleve.NewKeywordFieldMapping()
		m.Store = true
		m.IncludeInAll = false
		return m
	}

	doc := bleve.NewDocumentMapping()
	doc.Dynamic = false
	doc.AddFieldMappingsAt(FieldEntrypointName, prose())
	doc.AddFieldMappingsAt(FieldEntrypointID, exact())
	doc.AddFieldMappingsAt(FieldPluginName, prose())
	doc.AddFieldMappingsAt(FieldPluginID, exact())
	indexMapping.DefaultMapping = doc

	return indexMapping, nil
}

// Writer opens the single writer handle. A second concurrent call panics:
// two writers would interleave batches and break per-plugin replacement.
func (b *BleveIndex) Writer() (IndexWriter, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrIndexClosed
	}
	if !b.writerOpen.CompareAndSwap(false, true) {
		panic("store: index writer already open")
	}

	return &bleveWriter{
		owner: b,
		batch: b.index.NewBatch(),
	}, nil
}

// OpenSnapshot returns a point-in-time reader over committed documents.
func (b *BleveIndex) OpenSnapshot() (Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrIndexClosed
	}

	reader, err := b.advanced.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open index reader: %w", err)
	}

	return &bleveSnapshot{
		reader:  reader,
		mapping: b.index.Mapping(),
	}, nil
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// committedIDs returns the ids of committed documents for pluginID.
func (b *BleveIndex) committedIDs(ctx context.Context, pluginID model.PluginID) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrIndexClosed
	}

	docCount, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if docCount == 0 {
		return nil, nil
	}

	termQuery := bleve.NewTermQuery(string(pluginID))
	termQuery.SetField(FieldPluginID)

	req := bleve.NewSearchRequestOptions(termQuery, int(docCount), 0, false)
	req.Fields = []string{}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search plugin documents: %w", err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Verify interface implementation
var _ TextIndex = (*BleveIndex)(nil)

// bleveWriter stages operations in a bleve batch. bleve applies a batch
// atomically, so readers see all of it or none of it.
type bleveWriter struct {
	owner    *BleveIndex
	batch    *bleve.Batch
	released bool
}

// Add implements IndexWriter.
func (w *bleveWriter) Add(doc IndexedDocument) error {
	if w.released {
		return errors.New("writer is closed")
	}
	if limit := w.owner.opts.BatchLimit; limit > 0 && w.batch.Size() >= limit {
		return fmt.Errorf("%w: %d operations", ErrBatchLimit, limit)
	}

	err := w.batch.Index(doc.DocID(), bleveDocument{
		EntrypointName: doc.EntrypointName,
		EntrypointID:   string(doc.EntrypointID),
		PluginName:     doc.PluginName,
		PluginID:       string(doc.PluginID),
	})
	if err != nil {
		return fmt.Errorf("failed to stage document %s/%s: %w", doc.PluginID, doc.EntrypointID, err)
	}
	return nil
}

// DeleteWhere implements IndexWriter.
func (w *bleveWriter) DeleteWhere(ctx context.Context, pluginID model.PluginID) error {
	if w.released {
		return errors.New("writer is closed")
	}

	ids, err := w.owner.committedIDs(ctx, pluginID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		w.batch.Delete(id)
	}
	return nil
}

// Commit implements IndexWriter.
func (w *bleveWriter) Commit() error {
	if w.released {
		return errors.New("writer is closed")
	}

	w.owner.mu.RLock()
	defer w.owner.mu.RUnlock()

	if w.owner.closed {
		return ErrIndexClosed
	}
	if err := w.owner.index.Batch(w.batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	w.batch.Reset()
	return nil
}

// Close implements IndexWriter.
func (w *bleveWriter) Close() {
	if w.released {
		return
	}
	w.released = true
	w.batch.Reset()
	w.owner.writerOpen.Store(false)
}

// bleveSnapshot searches one bleve reader. Each reader is a refcounted
// scorch snapshot, so later batches never become visible through it.
type bleveSnapshot struct {
	reader  index.IndexReader
	mapping mapping.IndexMapping
}

// Search implements Snapshot.
func (s *bleveSnapshot) Search(ctx context.Context, q query.Query, offset, size int) ([]Hit, error) {
	if size <= 0 {
		return nil, nil
	}

	searcher, err := q.Searcher(ctx, s.reader, s.mapping, search.SearcherOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to build searcher: %w", err)
	}
	defer func() { _ = searcher.Close() }()

	coll := collector.NewTopNCollector(size, offset, search.SortOrder{&search.SortDocID{}})
	if err := coll.Collect(ctx, searcher, s.reader); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	matches := coll.Results()
	hits := make([]Hit, 0, len(matches))
	for _, match := range matches {
		hit, err := s.load(match.ID)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// load reads the stored fields of a matched document.
func (s *bleveSnapshot) load(docID string) (Hit, error) {
	doc, err := s.reader.Document(docID)
	if err != nil {
		return Hit{}, fmt.Errorf("failed to load document %q: %w", docID, err)
	}
	if doc == nil {
		panic(fmt.Sprintf("store: snapshot lost matched document %q", docID))
	}

	fields := make(map[string]string, 4)
	doc.VisitFields(func(f index.Field) {
		fields[f.Name()] = string(f.Value())
	})

	stored := func(name string) string {
		v, ok := fields[name]
		if !ok {
			panic(fmt.Sprintf("store: document %q has no stored field %q", docID, name))
		}
		return v
	}

	return Hit{
		DocID:          docID,
		EntrypointName: stored(FieldEntrypointName),
		EntrypointID:   model.EntrypointID(stored(FieldEntrypointID)),
		PluginName:     stored(FieldPluginName),
		PluginID:       model.PluginID(stored(FieldPluginID)),
	}, nil
}

// DocCount implements Snapshot.
func (s *bleveSnapshot) DocCount() (uint64, error) {
	return s.reader.DocCount()
}

// Close implements Snapshot.
func (s *bleveSnapshot) Close() error {
	return s.reader.Close()
}
