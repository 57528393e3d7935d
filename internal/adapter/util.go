package adapter

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlTagRegex   = regexp.MustCompile(`<[^>]*>`)
	htmlBreakRegex = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</li>|</div>`)
)

// extractText converts an HTML or HTML-encoded string to plain text.
// It first unescapes HTML entities (handles Greenhouse's double-encoding;
// no-op on already-real HTML), turns block-level boundaries into newlines so
// adjacent words do not fuse, strips all tags, then collapses whitespace.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	broken := htmlBreakRegex.ReplaceAllString(unescaped, "\n")
	plain := htmlTagRegex.ReplaceAllString(broken, "")
	return strings.Join(strings.Fields(plain), " ")
}
