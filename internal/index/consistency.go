package index

import (
	"context"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/model"
	"github.com/Aman-CERP/launchdex/internal/search"
	"github.com/Aman-CERP/launchdex/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanDocument indicates an index document without metadata.
	InconsistencyOrphanDocument InconsistencyType = iota
	// InconsistencyMissingDocument indicates a metadata entrypoint missing from the index.
	InconsistencyMissingDocument
	// InconsistencyNameMismatch indicates differing names in index and metadata.
	InconsistencyNameMismatch
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanDocument:
		return "orphan_document"
	case InconsistencyMissingDocument:
		return "missing_document"
	case InconsistencyNameMismatch:
		return "name_mismatch"
	default:
		return "unknown"
	}
}

// MarshalText renders the type name in JSON output.
func (t InconsistencyType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Inconsistency represents a detected cross-store issue.
type Inconsistency struct {
	Type         InconsistencyType  `json:"type"`
	PluginID     model.PluginID     `json:"plugin_id"`
	EntrypointID model.EntrypointID `json:"entrypoint_id"`
	Details      string             `json:"details"`
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Generation is the published generation that was checked.
	Generation uint64 `json:"generation"`
	// Checked is the number of index documents verified.
	Checked int `json:"checked"`
	// Inconsistencies contains all detected issues.
	Inconsistencies []Inconsistency `json:"inconsistencies"`
	// Duration is how long the check took.
	Duration time.Duration `json:"duration"`
}

// OK reports whether no issue was found.
func (r *CheckResult) OK() bool {
	return len(r.Inconsistencies) == 0
}

// ConsistencyChecker validates that every index document of the published
// generation has matching metadata and vice versa. It never mutates.
type ConsistencyChecker struct {
	coordinator *Coordinator
}

// NewConsistencyChecker creates a checker for c.
func NewConsistencyChecker(c *Coordinator) *ConsistencyChecker {
	return &ConsistencyChecker{coordinator: c}
}

// Check scans the current generation.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	gen := c.coordinator.acquire()
	if gen == nil {
		return nil, closedError()
	}
	defer gen.release()

	return checkGeneration(ctx, gen, start)
}

func checkGeneration(ctx context.Context, gen *generation, start time.Time) (*CheckResult, error) {
	var issues []Inconsistency
	indexed := make(map[string]bool)
	all := bleve.NewMatchAllQuery()

	for page := 0; ; page++ {
		hits, err := gen.snapshot.Search(ctx, all, page*search.PageSize, search.PageSize)
		if err != nil {
			return nil, lderrors.SearchError("failed to scan search index", err)
		}
		if len(hits) == 0 {
			break
		}

		for _, hit := range hits {
			indexed[hit.DocID] = true

			data, ok := gen.metadata.Lookup(hit.PluginID, hit.EntrypointID)
			switch {
			case !ok:
				issues = append(issues, Inconsistency{
					Type:         InconsistencyOrphanDocument,
					PluginID:     hit.PluginID,
					EntrypointID: hit.EntrypointID,
					Details:      "index document without matching metadata",
				})
			case data.Name != hit.EntrypointName:
				issues = append(issues, Inconsistency{
					Type:         InconsistencyNameMismatch,
					PluginID:     hit.PluginID,
					EntrypointID: hit.EntrypointID,
					Details:      fmt.Sprintf("index has %q, metadata has %q", hit.EntrypointName, data.Name),
				})
			}
		}
	}

	for _, pluginID := range gen.metadata.PluginIDs() {
		plugin, _ := gen.metadata.Plugin(pluginID)
		for entrypointID := range plugin.Entrypoints {
			if indexed[store.DocID(pluginID, entrypointID)] {
				continue
			}
			issues = append(issues, Inconsistency{
				Type:         InconsistencyMissingDocument,
				PluginID:     pluginID,
				EntrypointID: entrypointID,
				Details:      "metadata entrypoint missing from index",
			})
		}
	}

	return &CheckResult{
		Generation:      gen.number,
		Checked:         len(indexed),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}
