package command

import (
	"regexp"
	"strings"

	"github.com/cinevoxhq/cinevox/pkg/types"
)

// pattern pairs a compiled regex with the constructor applied to its
// submatches when it matches.
type pattern struct {
	// regex is the compiled pattern. Positional groups are passed to build
	// as matches[1], matches[2], etc.
	regex *regexp.Regexp

	// name is a human-readable label, used in tests and logs.
	name string

	// build converts the full submatch slice into a Command. Returning an
	// invalid Command rejects the match and lets later patterns try.
	build func(matches []string, raw types.Utterance) Command
}

// defaultPatterns returns the built-in ordered rule set. First match wins.
// Patterns tolerate mixed case, multi-word proper nouns (recommenders that
// are publication names, titles with embedded punctuation), and surrounding
// whitespace.
func defaultPatterns() []pattern {
	return []pattern{
		{
			name:  "recommends",
			regex: regexp.MustCompile(`(?i)^(.+?)\s+recommends?\s+(.+)$`),
			build: func(m []string, raw types.Utterance) Command {
				return recommenderOrUnknown(m[1], m[2], raw)
			},
		},
		{
			name:  "recommended-by",
			regex: regexp.MustCompile(`(?i)^(.+?)\s+(?:was\s+|is\s+)?recommended\s+by\s+(.+)$`),
			build: func(m []string, raw types.Utterance) Command {
				return recommenderOrUnknown(m[2], m[1], raw)
			},
		},
		{
			name:  "add-to-watchlist",
			regex: regexp.MustCompile(`(?i)^add\s+(.+?)\s+to\s+(?:my\s+)?(?:watch\s?list|list)$`),
			build: func(m []string, raw types.Utterance) Command {
				return movieOrUnknown(m[1], raw)
			},
		},
		{
			name:  "the-movie",
			regex: regexp.MustCompile(`(?i)^(?:.*?\b)?the\s+(?:movie|film)\s+(?:called\s+|named\s+)?(.+)$`),
			build: func(m []string, raw types.Utterance) Command {
				return movieOrUnknown(m[1], raw)
			},
		},
		{
			name:  "search-verb",
			regex: regexp.MustCompile(`(?i)^(?:search\s+for|look\s+up|find\s+me|find|show\s+me)\s+(.+)$`),
			build: func(m []string, raw types.Utterance) Command {
				return movieOrUnknown(m[1], raw)
			},
		},
	}
}

// Parser resolves utterances against the ordered pattern set.
//
// Parser is stateless and safe for concurrent use. Parsing is pure and
// deterministic: identical input always yields a structurally identical
// Command, which the fallback decision in the resolver layer relies on.
type Parser struct {
	patterns []pattern
}

// NewParser creates a Parser with the built-in rule set.
func NewParser() *Parser {
	return &Parser{patterns: defaultPatterns()}
}

// Parse resolves one utterance. It never returns an error: an utterance no
// rule matches yields the Unknown variant.
func (p *Parser) Parse(raw types.Utterance) Command {
	trimmed := strings.TrimSpace(raw.Text)
	if trimmed == "" {
		return Unknown(raw)
	}

	for _, pat := range p.patterns {
		matches := pat.regex.FindStringSubmatch(trimmed)
		if matches == nil {
			continue
		}
		if cmd := pat.build(matches, raw); cmd.IsValid() {
			return cmd
		}
	}

	return Unknown(raw)
}

// recommenderOrUnknown builds a RecommenderSearch when both captures trim to
// non-empty strings.
func recommenderOrUnknown(recommender, movie string, raw types.Utterance) Command {
	recommender = cleanCapture(recommender)
	movie = cleanCapture(movie)
	if recommender == "" || movie == "" {
		return Unknown(raw)
	}
	return RecommenderSearch(recommender, movie, raw)
}

// movieOrUnknown builds a MovieSearch when the capture trims to a non-empty
// string.
func movieOrUnknown(query string, raw types.Utterance) Command {
	query = cleanCapture(query)
	if query == "" {
		return Unknown(raw)
	}
	return MovieSearch(query, raw)
}

// cleanCapture trims whitespace and trailing sentence punctuation from a
// regex capture.
func cleanCapture(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".!?,;")
	return strings.TrimSpace(s)
}
