// Package pipeline routes finalized utterances through classification,
// deterministic parsing, LLM fallback and search execution.
//
// The router owns search concurrency: a new search cancels the previous
// search's in-flight work, and every post-await side effect is gated on a
// task generation check so a cancelled search can never overwrite the
// outcome of its successor.
package pipeline

import (
	"context"

	"github.com/cinevoxhq/cinevox/internal/assist"
	"github.com/cinevoxhq/cinevox/internal/command"
	"github.com/cinevoxhq/cinevox/internal/hints"
	"github.com/cinevoxhq/cinevox/internal/intent"
	"github.com/cinevoxhq/cinevox/pkg/types"
)

// Movie is one catalog entry in a search result.
type Movie struct {
	// ID is the catalog identifier.
	ID string `json:"id"`

	// Title is the display title.
	Title string `json:"title"`

	// Year is the release year, when known.
	Year int `json:"year,omitempty"`
}

// Catalog is the movie catalog search service. Its implementation is an
// opaque collaborator; only the operations the router needs are declared.
type Catalog interface {
	// SearchMovie finds catalog entries for a title query.
	SearchMovie(ctx context.Context, query string) ([]Movie, error)

	// SearchRecommended finds catalog entries for a movie credited to a
	// recommender.
	SearchRecommended(ctx context.Context, recommender, movie string) ([]Movie, error)
}

// ActionExecutor handles action-only utterances ("mark as watched").
type ActionExecutor interface {
	Execute(ctx context.Context, u types.Utterance) error
}

// Importer handles list-import utterances ("paste from clipboard").
type Importer interface {
	Import(ctx context.Context, u types.Utterance) error
}

// Analytics receives routing events. Failures are absorbed; analytics must
// never affect the primary result.
type Analytics interface {
	Record(ctx context.Context, ev Event) error
}

// Sink receives the UI-visible outcome of each search. Apply is called at
// most once per submitted utterance, and never for a superseded search.
type Sink interface {
	Apply(outcome Outcome)
}

// OutcomeKind labels what a routed utterance produced.
type OutcomeKind string

const (
	// OutcomeDirect carries catalog results from a deterministic or
	// LLM-resolved command.
	OutcomeDirect OutcomeKind = "direct"

	// OutcomeDiscovery carries AI-assisted discovery suggestions.
	OutcomeDiscovery OutcomeKind = "discovery"

	// OutcomeAction means the utterance was dispatched to the command
	// executor.
	OutcomeAction OutcomeKind = "action"

	// OutcomeImport means the utterance was dispatched to the importer.
	OutcomeImport OutcomeKind = "import"

	// OutcomeFailed means routing produced an error the caller should show.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the result of routing one utterance.
type Outcome struct {
	// Kind labels the outcome variant.
	Kind OutcomeKind

	// Utterance is the routed input.
	Utterance types.Utterance

	// Intent is the classifier verdict.
	Intent intent.Classification

	// Command is the resolved command, when one was resolved.
	Command command.Command

	// Movies holds catalog results for OutcomeDirect.
	Movies []Movie

	// Suggestions and Interpretation hold discovery results for
	// OutcomeDiscovery.
	Suggestions    []assist.Suggestion
	Interpretation string

	// Hints is the extracted hint set used for discovery.
	Hints hints.ExtractedHints

	// Err is set for OutcomeFailed.
	Err error

	// ResolverUsed reports whether the LLM fallback was invoked.
	ResolverUsed bool
}

// Event is one analytics record for a routed utterance.
type Event struct {
	// Utterance is the routed text.
	Utterance string

	// Intent is the classifier verdict.
	Intent intent.Intent

	// Confidence is the classifier confidence.
	Confidence float64

	// CommandKind is the resolved command kind.
	CommandKind command.Kind

	// Outcome is the outcome kind label.
	Outcome OutcomeKind

	// ResolverUsed reports whether the LLM fallback was invoked.
	ResolverUsed bool

	// ResultCount is the number of movies or suggestions produced.
	ResultCount int
}
