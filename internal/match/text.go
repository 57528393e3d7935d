// Package match implements the keyword matching engine: normalized text
// views of a posting, the boolean criteria evaluation (required terms AND'd,
// groups OR'd within and AND'd across, exclusions vetoing), and the snippet
// and summary rendering used in notifications.
package match

import (
	"strings"
	"unicode"
)

// MatchableText holds original and normalized variants of a posting's
// searchable fields. It is derived, never persisted, and recomputed for
// every evaluation cycle.
type MatchableText struct {
	TitleOriginal       string
	TitleNorm           string
	DescriptionOriginal string
	DescriptionNorm     string
	LocationOriginal    string
	LocationNorm        string
	FullTextNorm        string // all three normalized fields joined for quick checks
}

// NewMatchableText normalizes the three searchable fields. The same
// Normalize transform is applied to criteria terms at config load, so a
// multi-word term stays matchable as one contiguous substring.
func NewMatchableText(title, description, location string) MatchableText {
	titleNorm := Normalize(title)
	descNorm := Normalize(description)
	locNorm := Normalize(location)

	return MatchableText{
		TitleOriginal:       title,
		TitleNorm:           titleNorm,
		DescriptionOriginal: description,
		DescriptionNorm:     descNorm,
		LocationOriginal:    location,
		LocationNorm:        locNorm,
		FullTextNorm:        strings.TrimSpace(titleNorm + " " + descNorm + " " + locNorm),
	}
}

// Normalize lowercases text and strips everything that is not a letter,
// digit, internal hyphen, or internal apostrophe, collapsing whitespace runs
// to single spaces. Word order is preserved so phrases like "work from home"
// remain contiguous substrings.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '\'':
			// Kept for now; leading/trailing occurrences are trimmed below.
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		w = strings.Trim(w, "-'")
		if w != "" {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
