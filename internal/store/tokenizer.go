package store

import (
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// TokenizerName is the bleve registry name of the launcher tokenizer.
	TokenizerName = "launcher_tokenizer"

	// AnalyzerName is the bleve analyzer used for prose fields.
	AnalyzerName = "launcher_analyzer"

	// MaxTokenLength drops tokens of this many bytes or more.
	MaxTokenLength = 40
)

func init() {
	_ = registry.RegisterTokenizer(TokenizerName, tokenizerConstructor)
}

// span is a token's byte range in the source text.
type span struct {
	start, end int
}

// tokenSpans splits text on every rune that is neither a letter nor a digit.
func tokenSpans(text string) []span {
	var spans []span
	start := -1
	for i, r := range text {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case isWord && start < 0:
			start = i
		case !isWord && start >= 0:
			spans = append(spans, span{start, i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, span{start, len(text)})
	}

	kept := spans[:0]
	for _, s := range spans {
		if s.end-s.start < MaxTokenLength {
			kept = append(kept, s)
		}
	}
	return kept
}

// Tokenize splits text into lowercase terms exactly as the index does.
// Punctuation and whitespace never produce terms.
func Tokenize(text string) []string {
	spans := tokenSpans(text)
	tokens := make([]string, 0, len(spans))
	for _, s := range spans {
		tokens = append(tokens, strings.ToLower(text[s.start:s.end]))
	}
	return tokens
}

// tokenizerConstructor creates the launcher tokenizer for bleve.
func tokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &launcherTokenizer{}, nil
}

// launcherTokenizer implements analysis.Tokenizer on top of tokenSpans.
type launcherTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *launcherTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	spans := tokenSpans(text)

	result := make(analysis.TokenStream, 0, len(spans))
	for i, s := range spans {
		result = append(result, &analysis.Token{
			Term:     []byte(strings.ToLower(text[s.start:s.end])),
			Start:    s.start,
			End:      s.end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return result
}
