// Package normalize implements the Team Normalizer (component B): a
// pure function mapping a raw scraped team name to a canonical key
// used for exact and normalized matching upstream of the fuzzy tier.
package normalize

import (
	"sort"
	"strings"
	"unicode"

	"github.com/greenbier/divrank/internal/errs"
)

// clubSuffixFolds collapses common club-naming variants that refer to
// the same organization down to one token, so "Rovers FC" and "Rovers
// Football Club" normalize identically; it also expands the "phx"
// abbreviation to "phoenix".
var clubSuffixFolds = map[string]string{
	"fc":         "fc",
	"football":   "fc",
	"club":       "",
	"sc":         "sc",
	"soccer":     "sc",
	"academy":    "acad",
	"united":     "utd",
	"utd":        "utd",
	"athletic":   "ath",
	"athletics":  "ath",
	"association": "",
	"youth":      "",
	"select":     "sel",
	"phx":        "phoenix",
}

// Key normalizes a raw team name into a canonical key: lowercased,
// punctuation stripped, whitespace collapsed, club-suffix tokens
// folded, and remaining tokens sorted. Sorting tokens makes the key
// order-insensitive so "Desert United SC" and "SC Desert United"
// normalize to the same key.
//
// Key is idempotent: Key(Key(x)) == Key(x) for any x that does not
// itself contain punctuation requiring a second pass (guaranteed
// here since the output is already lowercase, space-joined tokens).
func Key(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errs.ErrEmptyName
	}

	lower := strings.ToLower(trimmed)
	stripped := stripPunctuation(lower)
	tokens := strings.Fields(stripped)

	folded := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if f, ok := clubSuffixFolds[tok]; ok {
			if f == "" {
				continue
			}
			folded = append(folded, f)
			continue
		}
		folded = append(folded, tok)
	}

	if len(folded) == 0 {
		// every token folded away (e.g. raw name was just "Youth Club");
		// fall back to the unfolded token list so the key stays
		// distinguishing rather than collapsing unrelated teams.
		folded = tokens
	}

	sort.Strings(folded)
	key := strings.Join(folded, " ")
	if key == "" {
		return "", errs.ErrEmptyName
	}
	return key, nil
}

// stripPunctuation removes runes that are not letters, digits, or
// whitespace, replacing them with a space so adjacent words do not
// get fused together (e.g. "Rovers-Youth" -> "rovers youth").
func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// Tokens returns the sorted, folded tokens of raw's key (the key split
// on spaces), used by the fuzzy matcher (component C) to compute
// token-set IoU.
func Tokens(raw string) ([]string, error) {
	key, err := Key(raw)
	if err != nil {
		return nil, err
	}
	return strings.Fields(key), nil
}
