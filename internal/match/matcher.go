package match

import (
	"fmt"
	"sort"
	"strings"
)

// Field names used in Verdict.FieldsByTerm, in evaluation order.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldLocation    = "location"
)

// Verdict is the result of evaluating one posting's text against Criteria.
// It records not just the boolean outcome but the full rationale, so
// notifications can explain why a posting qualified.
type Verdict struct {
	IsMatch bool

	MatchedRequired []string   // sorted
	MissingRequired []string   // sorted
	MatchedPerGroup [][]string // indexed to Criteria.Groups, each sorted
	MissingGroups   []int      // indices of groups with zero matches
	MatchedExcluded []string   // sorted; non-empty vetoes the match

	FieldsByTerm map[string][]string // matched term -> fields it appeared in
	Snippets     []string            // original-text excerpts around matched terms
	Summary      string              // human-readable rationale
}

// MatchedTerms returns every positive term that matched, deduplicated and
// sorted. Excluded hits are not included.
func (v Verdict) MatchedTerms() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range v.MatchedRequired {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, g := range v.MatchedPerGroup {
		for _, t := range g {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Matcher evaluates postings against one fixed Criteria.
type Matcher struct {
	criteria Criteria
}

// NewMatcher returns a matcher for the given criteria. Evaluate is pure:
// identical inputs always produce identical verdicts.
func NewMatcher(criteria Criteria) *Matcher {
	return &Matcher{criteria: criteria}
}

// Evaluate applies the boolean rules: all required terms must appear, every
// group needs at least one hit, and any excluded hit vetoes the match
// regardless of everything else. A term "appears" when it is a substring of
// any normalized field.
func (m *Matcher) Evaluate(text MatchableText) Verdict {
	fields := []struct {
		name string
		text string
	}{
		{FieldTitle, text.TitleNorm},
		{FieldDescription, text.DescriptionNorm},
		{FieldLocation, text.LocationNorm},
	}

	v := Verdict{FieldsByTerm: make(map[string][]string)}

	record := func(term string) bool {
		var hits []string
		for _, f := range fields {
			if strings.Contains(f.text, term) {
				hits = append(hits, f.name)
			}
		}
		if len(hits) == 0 {
			return false
		}
		v.FieldsByTerm[term] = hits
		return true
	}

	for _, term := range m.criteria.Required {
		if record(term) {
			v.MatchedRequired = append(v.MatchedRequired, term)
		} else {
			v.MissingRequired = append(v.MissingRequired, term)
		}
	}

	for i, group := range m.criteria.Groups {
		var matched []string
		for _, term := range group {
			if record(term) {
				matched = append(matched, term)
			}
		}
		sort.Strings(matched)
		v.MatchedPerGroup = append(v.MatchedPerGroup, matched)
		if len(matched) == 0 {
			v.MissingGroups = append(v.MissingGroups, i)
		}
	}

	for _, term := range m.criteria.Excluded {
		for _, f := range fields {
			if strings.Contains(f.text, term) {
				v.MatchedExcluded = append(v.MatchedExcluded, term)
				break
			}
		}
	}

	sort.Strings(v.MatchedRequired)
	sort.Strings(v.MissingRequired)
	sort.Strings(v.MatchedExcluded)

	// Exclusion is a veto, not a score: one excluded hit defeats everything.
	v.IsMatch = len(v.MissingRequired) == 0 &&
		len(v.MissingGroups) == 0 &&
		len(v.MatchedExcluded) == 0

	v.Snippets = ExtractSnippets(text.DescriptionOriginal, v.MatchedTerms(), snippetContextChars, maxSnippets)
	v.Summary = m.summarize(v)

	return v
}

func (m *Matcher) summarize(v Verdict) string {
	var lines []string

	// Call out matches that landed only in the location field; they are
	// easy to misread as title/description hits in an alert.
	locationOnly := true
	var locationTerms []string
	for term, fields := range v.FieldsByTerm {
		for _, f := range fields {
			if f != FieldLocation {
				locationOnly = false
			} else {
				locationTerms = append(locationTerms, term)
			}
		}
	}
	if locationOnly && len(locationTerms) > 0 {
		sort.Strings(locationTerms)
		lines = append(lines, "Location matched: "+strings.Join(locationTerms, ", "))
	}

	if len(v.MatchedRequired) > 0 {
		lines = append(lines, "Required terms: "+strings.Join(v.MatchedRequired, ", "))
	}
	for i, g := range v.MatchedPerGroup {
		if len(g) > 0 {
			lines = append(lines, fmt.Sprintf("Keyword group %d: %s", i+1, strings.Join(g, ", ")))
		}
	}
	if len(v.MatchedExcluded) > 0 {
		lines = append(lines, "Excluded terms found: "+strings.Join(v.MatchedExcluded, ", "))
	}

	if len(lines) == 0 {
		return "No specific match criteria"
	}
	return strings.Join(lines, "\n")
}
