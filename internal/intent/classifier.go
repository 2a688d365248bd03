package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// actionPhrases are library and playback commands that should bypass search
// entirely. Matched as substrings of the normalized utterance.
var actionPhrases = []string{
	"mark as watched",
	"mark watched",
	"mark it watched",
	"remove from my list",
	"remove it from",
	"delete from my list",
	"clear my watchlist",
	"clear my list",
	"create a list",
	"create a new list",
	"rate this",
	"rate it",
	"open settings",
	"open my watchlist",
}

// importPhrases signal ingestion of an externally produced list rather than
// a live search.
var importPhrases = []string{
	"paste",
	"from my clipboard",
	"from clipboard",
	"from chatgpt",
	"import my list",
	"import a list",
	"import this list",
}

// fuzzyPhrases are explicit tip-of-the-tongue markers.
var fuzzyPhrases = []string{
	"can't remember",
	"cannot remember",
	"don't remember",
	"can't recall",
	"the one where",
	"the one with",
	"the one about",
	"that movie where",
	"that film where",
	"something like",
	"not sure of the title",
	"not sure what it's called",
	"forget the name",
	"forgot the name",
	"what's it called",
	"what is it called",
	"no idea what it's called",
}

// plotVocabulary is the descriptor word list used by the density heuristic.
// Words here describe plot and setting rather than titles: characters,
// locations, and the verbs of a synopsis retold from memory.
var plotVocabulary = map[string]struct{}{}

func init() {
	words := []string{
		"guy", "girl", "man", "woman", "boy", "kid", "kids", "family",
		"robot", "alien", "aliens", "monster", "ghost", "ghosts", "vampire",
		"zombie", "zombies", "wizard", "witch", "detective", "cop", "cops",
		"agent", "spy", "soldier", "soldiers", "pirate", "pirates",
		"ship", "boat", "submarine", "plane", "train", "island", "desert",
		"jungle", "space", "spaceship", "planet", "future", "past",
		"prison", "heist", "robbery", "murder", "murders", "killer",
		"war", "battle", "apocalypse", "virus", "outbreak", "haunted",
		"dies", "died", "kills", "killed", "escapes", "escaped",
		"discovers", "discovered", "falls", "loves", "betrays", "steals",
		"kidnapped", "trapped", "stranded", "revenge", "curse", "cursed",
		"dream", "dreams", "memory", "memories", "time", "travel",
	}
	for _, w := range words {
		plotVocabulary[w] = struct{}{}
	}
}

var (
	// yearToken matches a standalone plausible release year.
	yearToken = regexp.MustCompile(`\b(19\d{2}|20[0-2]\d|2030)\b`)

	// withName matches "with <CapitalizedName>", a cast reference that marks
	// an utterance as structured rather than free narration.
	withName = regexp.MustCompile(`\bwith\s+[A-Z][a-z]+`)

	// searchVerb matches explicit search phrasing at any position.
	searchVerb = regexp.MustCompile(`(?i)\b(?:search\s+for|look\s+up|find|show\s+me)\b`)

	// recommenderPhrase matches recommendation attribution phrasing.
	recommenderPhrase = regexp.MustCompile(`(?i)\brecommend(?:s|ed)\b`)
)

// Classifier assigns an Intent and confidence to utterance text.
// It is stateless and safe for concurrent use.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier creates a Classifier. Zero fields in t fall back to
// DefaultThresholds.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{thresholds: t.withDefaults()}
}

// Classify resolves one utterance. Evidence classes are checked in priority
// order: action phrases, import phrases, explicit fuzzy phrases, plot
// descriptor density, long unstructured utterances. Anything left over is a
// direct search.
func (c *Classifier) Classify(text string) Classification {
	norm := normalize(text)
	if norm == "" {
		return Classification{Intent: IntentDirect, Confidence: 0.0}
	}
	tokens := strings.Fields(norm)

	if hits := countPhrases(norm, actionPhrases); hits > 0 {
		return Classification{Intent: IntentActionOnly, Confidence: lexiconConfidence(hits)}
	}
	if hits := countPhrases(norm, importPhrases); hits > 0 {
		return Classification{Intent: IntentImport, Confidence: lexiconConfidence(hits)}
	}
	if hits := countPhrases(norm, fuzzyPhrases); hits > 0 {
		return Classification{Intent: IntentFuzzy, Confidence: fuzzyConfidence(hits)}
	}

	if len(tokens) > c.thresholds.PlotDensityMinWords {
		if d := plotDensity(tokens); d > c.thresholds.PlotDensityCutoff {
			return Classification{Intent: IntentFuzzy, Confidence: densityConfidence(d)}
		}
	}

	if len(tokens) > c.thresholds.LongUtteranceWords && !titleLike(text) {
		return Classification{Intent: IntentFuzzy, Confidence: 0.6}
	}

	conf := 0.65
	if len(tokens) <= 4 {
		conf = 0.9
	}
	return Classification{Intent: IntentDirect, Confidence: conf}
}

// normalize lowercases and collapses whitespace so phrase matching is
// insensitive to casing and transcription spacing.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// countPhrases counts how many phrases from the lexicon occur in the
// normalized text.
func countPhrases(norm string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(norm, p) {
			n++
		}
	}
	return n
}

// plotDensity is the fraction of tokens found in plotVocabulary.
func plotDensity(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,!?;:'\"")
		if _, ok := plotVocabulary[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// titleLike reports whether the original-cased text carries any structural
// signal of a concrete search target: explicit search verbs, recommendation
// attribution, a release year, or a "with <Name>" cast reference. Utterances
// with such a signal stay direct no matter how long they are.
func titleLike(text string) bool {
	if searchVerb.MatchString(text) {
		return true
	}
	if recommenderPhrase.MatchString(text) {
		return true
	}
	if m := yearToken.FindString(text); m != "" {
		if y, err := strconv.Atoi(m); err == nil && y >= 1900 && y <= 2030 {
			return true
		}
	}
	return withName.MatchString(text)
}

// lexiconConfidence scores exact action/import phrase hits. A single hit is
// already strong evidence; additional hits push toward the cap.
func lexiconConfidence(hits int) float64 {
	conf := 0.75 + 0.1*float64(hits-1)
	return min(conf, 0.95)
}

// fuzzyConfidence scores explicit fuzzy phrase hits. Two or more distinct
// markers are near-certain.
func fuzzyConfidence(hits int) float64 {
	conf := 0.7 + 0.15*float64(hits)
	return min(conf, 0.95)
}

// densityConfidence grows with descriptor density but stays below the
// explicit-phrase scores.
func densityConfidence(d float64) float64 {
	return min(0.55+d, 0.8)
}
