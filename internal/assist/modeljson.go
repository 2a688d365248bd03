package assist

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// DecodeModelJSON parses a model's JSON payload into v. Models occasionally
// wrap their output in markdown fences or surrounding prose even when asked
// for a bare JSON object, so decoding falls back from direct parsing to
// fence extraction to balanced-brace scanning before giving up.
func DecodeModelJSON(content string, v any) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("empty model output")
	}

	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}

	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), v); err == nil {
			return nil
		}
	}

	for _, pair := range [][2]rune{{'{', '}'}, {'[', ']'}} {
		if extracted := balancedSlice(content, pair[0], pair[1]); extracted != "" {
			if err := json.Unmarshal([]byte(extracted), v); err == nil {
				return nil
			}
		}
	}

	return fmt.Errorf("no parseable JSON in model output: %s", truncate(content, 120))
}

// balancedSlice returns the first balanced open..close region of input,
// ignoring brackets inside JSON strings, or "" when none closes.
func balancedSlice(input string, open, close rune) string {
	depth := 0
	inString := false
	escape := false
	start := -1

	for i, ch := range input {
		if escape {
			escape = false
			continue
		}
		switch {
		case ch == '\\':
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			if depth == 0 {
				start = i
			}
			depth++
		case ch == close && depth > 0:
			depth--
			if depth == 0 {
				return input[start : i+len(string(ch))]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
