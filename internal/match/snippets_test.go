package match

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSnippetsFirstOccurrence(t *testing.T) {
	text := "Python appears here first. Much later in the text, Python appears again with different surroundings."

	snippets := ExtractSnippets(text, []string{"python"}, 20, 3)

	require.Len(t, snippets, 1)
	assert.True(t, strings.HasPrefix(snippets[0], "Python appears here"))
	assert.NotContains(t, snippets[0], "again")
}

func TestExtractSnippetsContextBounds(t *testing.T) {
	prefix := strings.Repeat("a", 200)
	suffix := strings.Repeat("b", 200)
	text := prefix + " python " + suffix

	snippets := ExtractSnippets(text, []string{"python"}, 20, 3)

	require.Len(t, snippets, 1)
	s := snippets[0]
	assert.True(t, strings.HasPrefix(s, "..."))
	assert.True(t, strings.HasSuffix(s, "..."))
	assert.Contains(t, s, "python")
	// window + term + ellipses, nothing near the full input
	assert.Less(t, len(s), 60)
}

func TestExtractSnippetsCapAndDedupe(t *testing.T) {
	text := "go rust python java kotlin"

	capped := ExtractSnippets(text, []string{"go", "rust", "python", "java"}, 2, 3)
	assert.Len(t, capped, 3)

	// Terms close together collapse into one identical window.
	deduped := ExtractSnippets(text, []string{"go", "rust"}, 100, 3)
	assert.Len(t, deduped, 1)
}

func TestExtractSnippetsCaseInsensitive(t *testing.T) {
	snippets := ExtractSnippets("We love PYTHON here", []string{"python"}, 50, 3)
	require.Len(t, snippets, 1)
	assert.Contains(t, snippets[0], "PYTHON")
}

func TestExtractSnippetsEmptyInputs(t *testing.T) {
	assert.Nil(t, ExtractSnippets("", []string{"python"}, 50, 3))
	assert.Nil(t, ExtractSnippets("some text", nil, 50, 3))
	assert.Nil(t, ExtractSnippets("some text", []string{"absent"}, 50, 3))
}

func TestExtractSnippetsMultiByteContext(t *testing.T) {
	// Window cut points land between multi-byte runes, never inside one.
	text := strings.Repeat("é", 40) + " Python " + strings.Repeat("é", 40)

	snippets := ExtractSnippets(text, []string{"python"}, 5, 3)

	require.Len(t, snippets, 1)
	assert.True(t, utf8.ValidString(snippets[0]))
	assert.Contains(t, snippets[0], "Python")
}

func TestExtractSnippetsCaseFoldKeepsAlignment(t *testing.T) {
	// U+0130 changes byte length under strings.ToLower; per-rune folding
	// keeps term positions aligned with the original text.
	text := "İstanbul İstanbul office hiring Python engineers onsite"

	snippets := ExtractSnippets(text, []string{"python"}, 10, 3)

	require.Len(t, snippets, 1)
	assert.True(t, utf8.ValidString(snippets[0]))
	assert.Contains(t, snippets[0], "Python")
}

func TestHighlightKeywordsWordBoundary(t *testing.T) {
	got := HighlightKeywords("We use Go and golang tooling", []string{"go"}, "<b>", "</b>")
	assert.Equal(t, "We use <b>Go</b> and golang tooling", got)
}

func TestHighlightKeywordsPhraseAndCasing(t *testing.T) {
	got := HighlightKeywords("Offering Work From Home options", []string{"work from home"}, "**", "**")
	assert.Equal(t, "Offering **Work From Home** options", got)
}

func TestHighlightKeywordsLongestFirst(t *testing.T) {
	got := HighlightKeywords("machine learning engineer", []string{"machine", "machine learning"}, "<b>", "</b>")
	assert.Equal(t, "<b>machine learning</b> engineer", got)
	assert.NotContains(t, got, "<b><b>")
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 100, "..."))

	got := TruncateText("the quick brown fox jumps over the lazy dog", 20, "...")
	assert.LessOrEqual(t, len(got), 20)
	assert.True(t, strings.HasSuffix(got, "..."))
}
