// Package search compiles launcher queries into index predicates and turns
// index hits into frecency-ranked display records.
package search

import (
	"regexp"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	lderrors "github.com/Aman-CERP/launchdex/internal/errors"
	"github.com/Aman-CERP/launchdex/internal/store"
)

// DefaultMaxQueryLength is the longest accepted query, in bytes.
const DefaultMaxQueryLength = 1024

// proseFields are the tokenized fields a query is matched against.
var proseFields = []string{store.FieldEntrypointName, store.FieldPluginName}

// Compiler turns raw query text into a bleve query.
type Compiler struct {
	// MaxLength rejects longer queries. Zero uses DefaultMaxQueryLength.
	MaxLength int
}

// Compile compiles raw with the default limits.
func Compile(raw string) (query.Query, error) {
	return Compiler{}.Compile(raw)
}

// Compile builds the predicate for raw.
//
// Each term becomes a contains-match (".*term.*") against the indexed tokens
// of a field. Within a field all terms must match; across the entrypoint and
// plugin name fields either group may match. Text without any terms matches
// every document.
func (c Compiler) Compile(raw string) (query.Query, error) {
	limit := c.MaxLength
	if limit <= 0 {
		limit = DefaultMaxQueryLength
	}
	if len(raw) > limit {
		return nil, lderrors.New(lderrors.ErrCodeInvalidQuery, "query is too long", nil).
			WithDetail("length", strconv.Itoa(len(raw))).
			WithDetail("max_length", strconv.Itoa(limit)).
			WithSuggestion("Shorten the query")
	}

	terms := store.Tokenize(raw)
	if len(terms) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}

	groups := make([]query.Query, 0, len(proseFields))
	for _, field := range proseFields {
		conjuncts := make([]query.Query, 0, len(terms))
		for _, term := range terms {
			q := bleve.NewRegexpQuery(".*" + regexp.QuoteMeta(term) + ".*")
			q.SetField(field)
			conjuncts = append(conjuncts, q)
		}
		groups = append(groups, bleve.NewConjunctionQuery(conjuncts...))
	}
	return bleve.NewDisjunctionQuery(groups...), nil
}
