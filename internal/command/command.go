// Package command implements deterministic resolution of finalized voice
// utterances into structured search commands. It checks utterance text
// against an ordered set of regex patterns; the first matching pattern wins.
//
// "No match" is a legitimate outcome, not an error: it is represented by the
// Unknown command kind and triggers the LLM fallback in the resolver layer.
package command

import "github.com/cinevoxhq/cinevox/pkg/types"

// Kind identifies which variant of the Command union a value carries.
type Kind string

const (
	// KindRecommenderSearch is a search for a movie attributed to a
	// recommender ("Sabrina recommends Baby Girl").
	KindRecommenderSearch Kind = "recommender_search"

	// KindMovieSearch is a direct title search ("add Dune to my watchlist").
	KindMovieSearch Kind = "movie_search"

	// KindUnknown means no deterministic pattern matched.
	KindUnknown Kind = "unknown"
)

// Command is the resolved structured action derived from one utterance.
// It is a tagged union: Kind selects the variant and determines which of the
// payload fields are meaningful.
//
// Invariant: RecommenderSearch carries non-empty trimmed Recommender and
// Movie; MovieSearch carries a non-empty trimmed Query; Unknown carries only
// Raw. Commands are created per utterance, never persisted, and consumed
// once by the router.
type Command struct {
	// Kind selects the variant.
	Kind Kind

	// Recommender is the person or publication credited with the
	// recommendation. Set only for KindRecommenderSearch.
	Recommender string

	// Movie is the recommended title. Set only for KindRecommenderSearch.
	Movie string

	// Query is the search text. Set only for KindMovieSearch.
	Query string

	// Raw is the utterance the command was derived from.
	Raw types.Utterance
}

// IsValid reports whether the command can be routed. Unknown is the only
// invalid variant.
func (c Command) IsValid() bool {
	return c.Kind == KindRecommenderSearch || c.Kind == KindMovieSearch
}

// RecommenderSearch constructs a valid recommender-search command.
func RecommenderSearch(recommender, movie string, raw types.Utterance) Command {
	return Command{
		Kind:        KindRecommenderSearch,
		Recommender: recommender,
		Movie:       movie,
		Raw:         raw,
	}
}

// MovieSearch constructs a valid movie-search command.
func MovieSearch(query string, raw types.Utterance) Command {
	return Command{
		Kind:  KindMovieSearch,
		Query: query,
		Raw:   raw,
	}
}

// Unknown constructs the invalid variant carrying only the raw utterance.
func Unknown(raw types.Utterance) Command {
	return Command{
		Kind: KindUnknown,
		Raw:  raw,
	}
}
