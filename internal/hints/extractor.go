package hints

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	yearPattern = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	actorTrigger = regexp.MustCompile(`(?i)\b(?:with|starring|stars|featuring)\s+(\S.*)$`)
	actorPlays   = regexp.MustCompile(`(?i)^(.*?\S)\s+plays\b`)

	directedBy   = regexp.MustCompile(`(?i)\bdirected\s+by\s+(\S.*)$`)
	directorFilm = regexp.MustCompile(`(?i)\ba\s+((?:\S+\s+){0,3}\S+)\s+(?:film|movie)\b`)

	authorBy  = regexp.MustCompile(`(?i)\b(?:books?|novels?)\s+by\s+(\S.*)$`)
	writtenBy = regexp.MustCompile(`(?i)\bwritten\s+by\s+(\S.*)$`)

	titleVerb = regexp.MustCompile(`(?i)\b(?:find|look\s+up|search\s+for|show\s+me|called|named)\s+(\S.*)$`)
)

// decadeMarkers maps lexical decade mentions to canonical start years.
// Ordered so the first marker found in the text wins.
var decadeMarkers = []struct {
	marker string
	year   int
}{
	{"2010s", 2010},
	{"2000s", 2000},
	{"90s", 1990},
	{"nineties", 1990},
	{"80s", 1980},
	{"eighties", 1980},
	{"70s", 1970},
	{"seventies", 1970},
	{"60s", 1960},
	{"sixties", 1960},
	{"50s", 1950},
	{"fifties", 1950},
	{"40s", 1940},
	{"forties", 1940},
	{"30s", 1930},
	{"thirties", 1930},
}

// genreKeywords maps trigger words to canonical genre labels.
var genreKeywords = []struct {
	keyword string
	genre   string
}{
	{"horror", "horror"},
	{"scary", "horror"},
	{"creepy", "horror"},
	{"comedy", "comedy"},
	{"funny", "comedy"},
	{"hilarious", "comedy"},
	{"romance", "romance"},
	{"romantic", "romance"},
	{"love story", "romance"},
	{"sci-fi", "sci-fi"},
	{"sci fi", "sci-fi"},
	{"science fiction", "sci-fi"},
	{"spaceship", "sci-fi"},
	{"alien", "sci-fi"},
	{"robot", "sci-fi"},
	{"documentary", "documentary"},
	{"animated", "animation"},
	{"animation", "animation"},
	{"cartoon", "animation"},
	{"anime", "animation"},
	{"thriller", "thriller"},
	{"suspense", "thriller"},
	{"western", "western"},
	{"musical", "musical"},
	{"war movie", "war"},
	{"war film", "war"},
	{"crime", "crime"},
	{"gangster", "crime"},
	{"heist", "crime"},
	{"fantasy", "fantasy"},
	{"wizard", "fantasy"},
	{"dragon", "fantasy"},
}

// plotVerbs is the action-verb vocabulary for plot-clue extraction.
var plotVerbs = map[string]struct{}{}

func init() {
	verbs := []string{
		"escapes", "escaped", "kills", "killed", "dies", "died",
		"steals", "stole", "discovers", "discovered", "fights", "fought",
		"survives", "survived", "hunts", "hunted", "betrays", "betrayed",
		"kidnapped", "kidnaps", "haunts", "haunted", "sinks", "sank",
		"explodes", "crashes", "crashed", "robs", "robbed", "solves",
		"saves", "saved", "chases", "chased", "disappears", "vanishes",
	}
	for _, v := range verbs {
		plotVerbs[v] = struct{}{}
	}
}

// remakeMarkers flag a remake or reboot mention.
var remakeMarkers = []string{
	"remake", "remade", "reboot", "rebooted",
	"new version", "modern version", "updated version",
}

// nameStopwords end a name capture early. They are words that commonly
// trail a trigger phrase without being part of the name.
var nameStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "that": {}, "this": {}, "it": {},
	"and": {}, "or": {}, "in": {}, "on": {}, "from": {}, "about": {},
	"some": {}, "my": {}, "his": {}, "her": {}, "last": {}, "where": {},
	"who": {}, "when": {}, "movie": {}, "film": {},
}

// Extractor derives ExtractedHints from utterance text. It is stateless and
// safe for concurrent use.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract runs every sub-extractor over the utterance and assembles the
// result. Sub-extractors are independent; one finding nothing does not
// affect the others.
func (e *Extractor) Extract(text string) ExtractedHints {
	text = strings.TrimSpace(text)
	if text == "" {
		return ExtractedHints{}
	}
	lower := strings.ToLower(text)

	return ExtractedHints{
		LikelyTitle: extractLikelyTitle(text),
		Year:        extractYear(text),
		Decade:      extractDecade(lower),
		Actors:      extractActors(text),
		Director:    extractDirector(text, lower),
		Author:      extractAuthor(text, lower),
		Genres:      extractGenres(lower),
		PlotClues:   extractPlotClues(lower),
		Remake:      extractRemake(lower),
	}
}

// extractYear returns the first 4-digit token in [1900, 2030], or 0.
func extractYear(text string) int {
	for _, m := range yearPattern.FindAllString(text, -1) {
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if y >= 1900 && y <= 2030 {
			return y
		}
	}
	return 0
}

// extractDecade returns the canonical start year of the first decade marker
// found, or 0. Earliest occurrence in the text wins, not marker-table order.
func extractDecade(lower string) int {
	best, bestIdx := 0, -1
	for _, dm := range decadeMarkers {
		idx := strings.Index(lower, dm.marker)
		if idx < 0 {
			continue
		}
		if bestIdx < 0 || idx < bestIdx {
			best, bestIdx = dm.year, idx
		}
	}
	return best
}

// extractActors collects cast names from trigger patterns and the known-name
// vocabulary, deduplicated case-insensitively.
func extractActors(text string) []string {
	var out []string
	seen := map[string]struct{}{}

	add := func(name string) {
		name = normalizeName(name)
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}

	if m := actorTrigger.FindStringSubmatch(text); m != nil {
		add(takeNameTokens(m[1], 3, true))
	}
	if m := actorPlays.FindStringSubmatch(text); m != nil {
		add(trailingNameTokens(m[1], 3))
	}

	// Assemble multi-token names from adjacent vocabulary matches anywhere
	// in the utterance.
	tokens := strings.Fields(text)
	for i := 0; i < len(tokens); i++ {
		tok := cleanToken(tokens[i])
		if !isKnownActorToken(tok) {
			continue
		}
		name := tok
		for i+1 < len(tokens) {
			next := cleanToken(tokens[i+1])
			if !isKnownActorToken(next) {
				break
			}
			name += " " + next
			i++
		}
		// A lone vocabulary token is too weak on its own unless it is a
		// surname-length word; require at least 2 tokens or 5 runes.
		if strings.Contains(name, " ") || utf8.RuneCountInString(name) >= 5 {
			add(name)
		}
	}

	return out
}

// extractDirector returns the mentioned director name, preferring pattern
// rules over the vocabulary substring check.
func extractDirector(text, lower string) string {
	if m := directedBy.FindStringSubmatch(text); m != nil {
		if name := takeNameTokens(m[1], 4, false); name != "" {
			return normalizeName(name)
		}
	}
	if m := directorFilm.FindStringSubmatch(text); m != nil {
		candidate := strings.ToLower(strings.TrimSpace(m[1]))
		if d := knownDirectorSubstring(candidate); d != "" {
			return normalizeName(d)
		}
	}
	if d := knownDirectorSubstring(lower); d != "" {
		return normalizeName(d)
	}
	return ""
}

// extractAuthor returns the source-material author. "written by" counts only
// when the utterance carries book or novel context, which keeps screenplay
// writers out.
func extractAuthor(text, lower string) string {
	if m := authorBy.FindStringSubmatch(text); m != nil {
		return normalizeName(takeNameTokens(m[1], 3, false))
	}
	if strings.Contains(lower, "book") || strings.Contains(lower, "novel") {
		if m := writtenBy.FindStringSubmatch(text); m != nil {
			return normalizeName(takeNameTokens(m[1], 3, false))
		}
	}
	return ""
}

// extractGenres maps keyword mentions to deduplicated genre labels.
func extractGenres(lower string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, gk := range genreKeywords {
		if !strings.Contains(lower, gk.keyword) {
			continue
		}
		if _, dup := seen[gk.genre]; dup {
			continue
		}
		seen[gk.genre] = struct{}{}
		out = append(out, gk.genre)
	}
	return out
}

// extractPlotClues captures a window of two tokens on either side of each
// action-verb match, deduplicated.
func extractPlotClues(lower string) []string {
	tokens := strings.Fields(lower)
	var out []string
	seen := map[string]struct{}{}
	for i, tok := range tokens {
		if _, ok := plotVerbs[cleanToken(tok)]; !ok {
			continue
		}
		lo := max(0, i-2)
		hi := min(len(tokens), i+3)
		clue := strings.Join(tokens[lo:hi], " ")
		if _, dup := seen[clue]; dup {
			continue
		}
		seen[clue] = struct{}{}
		out = append(out, clue)
	}
	return out
}

// extractRemake reports whether any remake marker phrase is present.
func extractRemake(lower string) bool {
	for _, m := range remakeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// extractLikelyTitle isolates the phrase most plausibly meant as the title.
// Utterances of at most 4 tokens are returned verbatim; otherwise a search
// verb's trailing phrase of at most 6 tokens is used.
func extractLikelyTitle(text string) string {
	tokens := strings.Fields(text)
	if len(tokens) <= 4 {
		return strings.TrimSpace(text)
	}
	m := titleVerb.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	trailing := strings.Fields(m[1])
	if len(trailing) > 6 {
		return ""
	}
	return strings.TrimRight(strings.Join(trailing, " "), ".!?,;")
}

// takeNameTokens consumes tokens from the start of rest until a stopword,
// a non-name token, or the limit. When requireNameLike is set, each token
// must be capitalized in the original text or be in the actor vocabulary,
// which keeps "with a robot" from becoming a cast member.
func takeNameTokens(rest string, limit int, requireNameLike bool) string {
	tokens := strings.Fields(rest)
	var name []string
	for _, tok := range tokens {
		if len(name) >= limit {
			break
		}
		clean := cleanToken(tok)
		if clean == "" {
			break
		}
		if _, stop := nameStopwords[strings.ToLower(clean)]; stop {
			break
		}
		if requireNameLike && !isCapitalized(clean) && !isKnownActorToken(clean) {
			break
		}
		name = append(name, clean)
		if strings.ContainsAny(tok, ".!?,;") {
			break
		}
	}
	return strings.Join(name, " ")
}

// trailingNameTokens takes up to limit name-like tokens from the end of the
// phrase, used for "<name> plays" captures.
func trailingNameTokens(phrase string, limit int) string {
	tokens := strings.Fields(phrase)
	var name []string
	for i := len(tokens) - 1; i >= 0 && len(name) < limit; i-- {
		clean := cleanToken(tokens[i])
		if clean == "" {
			break
		}
		if _, stop := nameStopwords[strings.ToLower(clean)]; stop {
			break
		}
		if !isCapitalized(clean) && !isKnownActorToken(clean) {
			break
		}
		name = append([]string{clean}, name...)
	}
	return strings.Join(name, " ")
}

// cleanToken strips surrounding punctuation from a token.
func cleanToken(tok string) string {
	return strings.Trim(tok, ".,!?;:'\"()")
}

// isCapitalized reports whether the token starts with an upper-case rune.
func isCapitalized(tok string) bool {
	r, _ := utf8.DecodeRuneInString(tok)
	return unicode.IsUpper(r)
}

// normalizeName title-cases every token of a captured name so mixed-case
// transcriptions come out consistently ("guillermo del toro" and
// "Guillermo del Toro" both become "Guillermo Del Toro").
func normalizeName(name string) string {
	tokens := strings.Fields(name)
	for i, tok := range tokens {
		r, size := utf8.DecodeRuneInString(tok)
		tokens[i] = string(unicode.ToUpper(r)) + strings.ToLower(tok[size:])
	}
	return strings.Join(tokens, " ")
}
