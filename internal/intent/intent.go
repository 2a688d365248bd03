// Package intent classifies finalized voice utterances into search intents.
//
// Classification is a pure function over the utterance text: an ordered set
// of evidence classes is checked (action phrases, import phrases, explicit
// fuzzy phrases, plot-descriptor density, long unstructured utterances) and
// the first match wins. Confidence is derived from the strength of the
// matched evidence and is fully reproducible for a given input.
package intent

// Intent is the coarse category a voice utterance resolves to.
type Intent string

const (
	// IntentDirect is a straightforward title or recommender search.
	IntentDirect Intent = "direct"

	// IntentFuzzy is a descriptive "I can't remember the title" discovery
	// request, routed to AI-assisted discovery.
	IntentFuzzy Intent = "fuzzy"

	// IntentActionOnly is a non-search command ("mark as watched"), routed
	// to the command executor instead of search.
	IntentActionOnly Intent = "action_only"

	// IntentImport is a request to ingest an external list ("paste from
	// clipboard"), routed to the import handler.
	IntentImport Intent = "import"
)

// Classification is the result of classifying one utterance.
type Classification struct {
	// Intent is the resolved category.
	Intent Intent

	// Confidence is in [0.0, 1.0]. Exact lexicon hits score higher than
	// density heuristics, and short utterances classified direct score
	// higher than longer ambiguous ones.
	Confidence float64
}

// Thresholds holds the tunable cutoffs of the classifier heuristics.
// The defaults mirror values tuned empirically on real voice traffic;
// treat them as configuration, not as exact truths.
type Thresholds struct {
	// PlotDensityCutoff is the minimum fraction of tokens that must be
	// plot-descriptor vocabulary for the density heuristic to fire.
	PlotDensityCutoff float64

	// PlotDensityMinWords is the word count an utterance must exceed
	// before the density heuristic applies.
	PlotDensityMinWords int

	// LongUtteranceWords is the token count above which an utterance
	// lacking any title-like pattern is classified fuzzy.
	LongUtteranceWords int
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PlotDensityCutoff:   0.2,
		PlotDensityMinWords: 5,
		LongUtteranceWords:  12,
	}
}

// withDefaults fills zero fields with the default cutoffs.
func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.PlotDensityCutoff == 0 {
		t.PlotDensityCutoff = def.PlotDensityCutoff
	}
	if t.PlotDensityMinWords == 0 {
		t.PlotDensityMinWords = def.PlotDensityMinWords
	}
	if t.LongUtteranceWords == 0 {
		t.LongUtteranceWords = def.LongUtteranceWords
	}
	return t
}
