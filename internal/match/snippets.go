package match

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	// Snippet windows are bounded so notification payloads stay small.
	snippetContextChars = 100
	maxSnippets         = 3
)

// ExtractSnippets pulls short excerpts of the original (non-normalized) text
// around the first occurrence of each term, with contextChars of context on
// either side. The first occurrence is a deliberate deterministic policy;
// results are deduplicated and capped at max entries. Offsets are counted in
// runes so windows never split a multi-byte character and case folding
// cannot shift positions.
func ExtractSnippets(text string, terms []string, contextChars, max int) []string {
	if text == "" || len(terms) == 0 || max <= 0 {
		return nil
	}

	runes := []rune(text)
	lower := lowerRunes(runes)
	var snippets []string
	seen := make(map[string]bool)

	for _, term := range terms {
		if term == "" {
			continue
		}
		needle := lowerRunes([]rune(term))
		pos := runeIndex(lower, needle)
		if pos < 0 {
			continue
		}

		start := pos - contextChars
		if start < 0 {
			start = 0
		}
		end := pos + len(needle) + contextChars
		if end > len(runes) {
			end = len(runes)
		}

		snippet := strings.TrimSpace(string(runes[start:end]))
		if start > 0 {
			snippet = "..." + snippet
		}
		if end < len(runes) {
			snippet = snippet + "..."
		}

		if seen[snippet] {
			continue
		}
		seen[snippet] = true
		snippets = append(snippets, snippet)
		if len(snippets) >= max {
			break
		}
	}

	return snippets
}

func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		j := 0
		for j < len(needle) && haystack[i+j] == needle[j] {
			j++
		}
		if j == len(needle) {
			return i
		}
	}
	return -1
}

// HighlightKeywords wraps each keyword occurrence in text with the given
// markers, case-insensitively, preserving the original casing. Single-word
// keywords match on word boundaries so "go" does not light up inside
// "golang"; multi-word phrases match as-is. All keywords run as one
// alternation with longer alternatives first, so a shorter keyword never
// marks text inside an already-marked phrase.
func HighlightKeywords(text string, keywords []string, markerStart, markerEnd string) string {
	if text == "" || len(keywords) == 0 {
		return text
	}

	uniq := make(map[string]bool, len(keywords))
	var sorted []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" || uniq[kw] {
			continue
		}
		uniq[kw] = true
		sorted = append(sorted, kw)
	}
	if len(sorted) == 0 {
		return text
	}
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	alts := make([]string, 0, len(sorted))
	for _, kw := range sorted {
		if strings.Contains(kw, " ") {
			alts = append(alts, regexp.QuoteMeta(kw))
		} else {
			alts = append(alts, `\b`+regexp.QuoteMeta(kw)+`\b`)
		}
	}

	re, err := regexp.Compile(`(?i)(` + strings.Join(alts, "|") + `)`)
	if err != nil {
		return text
	}
	return re.ReplaceAllString(text, markerStart+"$1"+markerEnd)
}

// TruncateText shortens text to max characters including the suffix,
// preferring a word boundary when one is close enough.
func TruncateText(text string, max int, suffix string) string {
	if text == "" || len(text) <= max {
		return text
	}

	cut := max - len(suffix)
	if cut <= 0 {
		return suffix[:max]
	}

	truncated := text[:cut]
	if idx := strings.LastIndex(truncated, " "); idx > cut*8/10 {
		truncated = truncated[:idx]
	}
	return strings.TrimRight(truncated, " ") + suffix
}
