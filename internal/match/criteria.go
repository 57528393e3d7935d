package match

import (
	"fmt"
	"strings"
)

// Criteria is the immutable keyword rule set for the life of one process.
// All terms are stored in the same normalized form Normalize produces for
// posting text.
type Criteria struct {
	Required []string   // every term must appear (AND)
	Groups   [][]string // per group: at least one term must appear (OR within, AND across)
	Excluded []string   // any appearance vetoes the match
}

// NewCriteria normalizes and validates a raw rule set. Empty terms and empty
// groups are dropped; duplicates within a list are deduplicated preserving
// first-seen order. It fails when no positive rule remains or when a term is
// both positive and excluded.
func NewCriteria(required []string, groups [][]string, excluded []string) (Criteria, error) {
	c := Criteria{
		Required: normalizeTerms(required),
		Excluded: normalizeTerms(excluded),
	}
	for _, g := range groups {
		ng := normalizeTerms(g)
		if len(ng) > 0 {
			c.Groups = append(c.Groups, ng)
		}
	}

	if len(c.Required) == 0 && len(c.Groups) == 0 {
		return Criteria{}, fmt.Errorf("search criteria must specify at least one required term or keyword group")
	}

	excludedSet := make(map[string]bool, len(c.Excluded))
	for _, term := range c.Excluded {
		excludedSet[term] = true
	}
	for _, term := range c.Required {
		if excludedSet[term] {
			return Criteria{}, fmt.Errorf("term %q cannot be both required and excluded", term)
		}
	}
	for i, g := range c.Groups {
		for _, term := range g {
			if excludedSet[term] {
				return Criteria{}, fmt.Errorf("keyword group %d contains excluded term %q", i, term)
			}
		}
	}

	return c, nil
}

func normalizeTerms(terms []string) []string {
	var out []string
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		n := Normalize(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// String renders the criteria compactly for startup logging.
func (c Criteria) String() string {
	var parts []string
	if len(c.Required) > 0 {
		parts = append(parts, "required="+strings.Join(c.Required, ","))
	}
	for i, g := range c.Groups {
		parts = append(parts, fmt.Sprintf("group%d=%s", i+1, strings.Join(g, "|")))
	}
	if len(c.Excluded) > 0 {
		parts = append(parts, "excluded="+strings.Join(c.Excluded, ","))
	}
	return strings.Join(parts, " ")
}
