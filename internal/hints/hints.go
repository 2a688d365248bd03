// Package hints extracts structured descriptive signals from utterance text
// for AI-assisted movie discovery. Extraction is a pure function: independent
// sub-extractors each look for one class of signal (year, decade, people,
// genres, plot fragments) and tolerate absence. An all-empty result is valid
// and means "no signal extracted".
package hints

// ExtractedHints is the structured signal set derived from one utterance.
// All fields are independently optional. The JSON shape is the wire contract
// with the discovery prompt and the usage ledger; empty collections are
// omitted so the value round-trips field for field.
//
// Values are produced fresh per utterance and never mutated after creation.
type ExtractedHints struct {
	// LikelyTitle is a verbatim phrase the user most plausibly meant as the
	// title, when one can be isolated.
	LikelyTitle string `json:"likely_title,omitempty"`

	// Year is the first plausible release year mentioned, in [1900, 2030].
	// Zero means no year signal.
	Year int `json:"year,omitempty"`

	// Decade is the canonical start year of a mentioned decade ("80s" is
	// 1980). Zero means no decade signal.
	Decade int `json:"decade,omitempty"`

	// Actors are mentioned cast names, capitalization-normalized and
	// deduplicated case-insensitively.
	Actors []string `json:"actors,omitempty"`

	// Director is the mentioned director name, capitalization-normalized.
	Director string `json:"director,omitempty"`

	// Author is the mentioned source-material author. Only set when the
	// utterance carries book or novel context.
	Author string `json:"author,omitempty"`

	// Genres are canonical genre labels derived from keyword mentions,
	// deduplicated.
	Genres []string `json:"genres,omitempty"`

	// PlotClues are short token windows around action verbs, deduplicated.
	PlotClues []string `json:"plot_clues,omitempty"`

	// Remake is true when the utterance mentions a remake or reboot.
	Remake bool `json:"remake,omitempty"`
}

// IsEmpty reports whether no sub-extractor found any signal.
func (h ExtractedHints) IsEmpty() bool {
	return h.LikelyTitle == "" &&
		h.Year == 0 &&
		h.Decade == 0 &&
		len(h.Actors) == 0 &&
		h.Director == "" &&
		h.Author == "" &&
		len(h.Genres) == 0 &&
		len(h.PlotClues) == 0 &&
		!h.Remake
}
