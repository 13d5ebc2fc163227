package search

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve/v2/search/query"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/model"
	"github.com/Aman-CERP/launchdex/internal/store"
)

// PageSize is the number of hits requested from the index per round trip.
const PageSize = 20

// Assemble runs q against snap until a page comes back empty, joins every
// hit with view and returns the records ordered by frecency, highest first.
//
// The scan is exhaustive: result sets are never capped at a page multiple.
// A hit without metadata panics with a consistency violation.
func Assemble(ctx context.Context, snap store.Snapshot, view *store.MetadataView, q query.Query) ([]model.SearchResult, error) {
	hits, err := collect(ctx, snap, q)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(hits))
	for i, hit := range hits {
		data := view.Entrypoint(hit.PluginID, hit.EntrypointID)
		ranked[i] = rankedResult{
			result:   toResult(hit, data),
			frecency: data.Frecency,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return frecencyBefore(ranked[i].frecency, ranked[j].frecency)
	})

	results := make([]model.SearchResult, len(ranked))
	for i, r := range ranked {
		results[i] = r.result
	}
	return results, nil
}

type rankedResult struct {
	result   model.SearchResult
	frecency float64
}

// collect reads consecutive pages of PageSize hits.
func collect(ctx context.Context, snap store.Snapshot, q query.Query) ([]store.Hit, error) {
	var hits []store.Hit
	for page := 0; ; page++ {
		batch, err := snap.Search(ctx, q, page*PageSize, PageSize)
		if err != nil {
			return nil, lderrors.SearchError("failed to read search results", err).
				WithDetail("page", strconv.Itoa(page))
		}
		if len(batch) == 0 {
			return hits, nil
		}
		hits = append(hits, batch...)
	}
}

// frecencyBefore orders descending with NaN after every number.
func frecencyBefore(a, b float64) bool {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN || bNaN:
		return !aNaN && bNaN
	default:
		return a > b
	}
}

func toResult(hit store.Hit, data store.EntrypointData) model.SearchResult {
	actions := make([]model.ResultAction, len(data.Actions))
	for i, a := range data.Actions {
		actions[i] = model.ResultAction{
			ActionType: actionType(a.Kind),
			Label:      a.Label,
		}
		if a.Shortcut != nil {
			sc := *a.Shortcut
			actions[i].Shortcut = &sc
		}
	}

	var generatorName string
	if data.Generator != nil {
		generatorName = data.Generator.Name
	}

	return model.SearchResult{
		EntrypointType:          data.Type,
		EntrypointName:          hit.EntrypointName,
		EntrypointGeneratorName: generatorName,
		EntrypointID:            hit.EntrypointID,
		EntrypointIcon:          append([]byte(nil), data.Icon...),
		PluginName:              hit.PluginName,
		PluginID:                hit.PluginID,
		EntrypointActions:       actions,
		EntrypointAccessories:   append([]model.Accessory(nil), data.Accessories...),
	}
}

func actionType(k store.ActionKind) model.ActionType {
	switch k {
	case store.ActionKindView:
		return model.ActionView
	default:
		return model.ActionCommand
	}
}
