package hints

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// knownActorTokens is a closed vocabulary of well-known actor first names and
// surnames, lowercased. It is used to assemble multi-token names from
// adjacent matching words and to accept lowercase transcriptions that a
// capitalization check would miss.
var knownActorTokens = map[string]struct{}{}

// knownDirectors is a closed vocabulary of director names, lowercased,
// checked as substrings of the utterance. Multi-word entries let a bare name
// mention ("that new villeneuve one") resolve without pattern context.
var knownDirectors = []string{
	"guillermo del toro",
	"christopher nolan",
	"steven spielberg",
	"martin scorsese",
	"denis villeneuve",
	"quentin tarantino",
	"greta gerwig",
	"david fincher",
	"alfred hitchcock",
	"stanley kubrick",
	"ridley scott",
	"bong joon-ho",
	"bong joon ho",
	"hayao miyazaki",
	"wes anderson",
	"sofia coppola",
	"james cameron",
	"peter jackson",
	"spike lee",
	"jordan peele",
}

func init() {
	tokens := []string{
		// First names.
		"tom", "brad", "leonardo", "meryl", "cate", "denzel", "scarlett",
		"keanu", "samuel", "morgan", "anne", "emma", "ryan", "jake",
		"natalie", "joaquin", "timothee", "florence", "margot", "saoirse",
		"anya", "zendaya", "viola", "frances",
		// Surnames.
		"hanks", "cruise", "pitt", "dicaprio", "streep", "blanchett",
		"washington", "johansson", "reeves", "jackson", "freeman",
		"hathaway", "stone", "gosling", "gyllenhaal", "portman", "phoenix",
		"chalamet", "pugh", "robbie", "ronan", "davis", "mcdormand",
		"oldman", "bale", "damon", "lawrence", "winslet", "pacino",
		"deniro", "niro", "streisand", "swinton",
	}
	for _, t := range tokens {
		knownActorTokens[t] = struct{}{}
	}
}

// phoneticCodes caches the primary double-metaphone code for every known
// actor token. Built once at init; read-only afterwards.
var phoneticCodes = map[string]string{}

func init() {
	for tok := range knownActorTokens {
		primary, _ := matchr.DoubleMetaphone(tok)
		if primary != "" {
			phoneticCodes[primary] = tok
		}
	}
}

// isKnownActorToken reports whether the lowercased token is in the actor
// vocabulary, either verbatim or by phonetic equivalence. Phonetic matching
// absorbs transcription spelling drift ("dicaprio" vs "decaprio").
func isKnownActorToken(tok string) bool {
	tok = strings.ToLower(tok)
	if _, ok := knownActorTokens[tok]; ok {
		return true
	}
	if len(tok) < 4 {
		// Short tokens collide too easily for phonetic matching.
		return false
	}
	primary, _ := matchr.DoubleMetaphone(tok)
	if primary == "" {
		return false
	}
	_, ok := phoneticCodes[primary]
	return ok
}

// knownDirectorSubstring returns the first known director whose name occurs
// as a substring of the lowercased text, or "".
func knownDirectorSubstring(lower string) string {
	for _, d := range knownDirectors {
		if strings.Contains(lower, d) {
			return d
		}
	}
	return ""
}
