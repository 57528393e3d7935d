// Package normalize turns raw adapter output into canonical postings and
// classifies each one against its stored prior: new, changed, or unchanged.
package normalize

import (
	"log/slog"
	"strings"
	"time"

	"github.com/avasilyev/jobscout/internal/fingerprint"
	"github.com/avasilyev/jobscout/internal/match"
	"github.com/avasilyev/jobscout/internal/model"
)

// Result pairs a canonical posting with its classification for this scan.
type Result struct {
	Posting        model.Posting
	Prior          *model.Posting // nil when IsNew
	IsNew          bool
	ContentChanged bool // true for new postings and for changed content
	Text           match.MatchableText
}

// Normalizer builds canonical postings from raw source data.
type Normalizer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize sanitizes the raw posting, computes its identity and content
// fingerprint, and compares against the stored prior (if any). A posting
// whose fingerprint equals its prior's is unchanged; a reappearing posting
// with identical content is treated the same way.
func (n *Normalizer) Normalize(raw model.RawPosting, kind, account string, prior *model.Posting, scanAt time.Time) Result {
	title := sanitize(raw.Title)
	description := sanitize(raw.Description)
	location := sanitize(raw.Location)

	if description == "" {
		n.logger.Warn("posting has no description, matching on title and location only",
			"source", account, "external_id", raw.ExternalID, "title", title)
	}

	posting := model.Posting{
		JobKey:        fingerprint.Identity(kind, account, raw.ExternalID),
		SourceKind:    kind,
		SourceAccount: account,
		ExternalID:    raw.ExternalID,
		Title:         title,
		Company:       sanitize(raw.Company),
		Location:      location,
		Description:   description,
		URL:           strings.TrimSpace(raw.URL),
		PostedAt:      raw.PostedAt,
		UpdatedAt:     raw.UpdatedAt,
		FirstSeenAt:   scanAt,
		LastSeenAt:    scanAt,
		Fingerprint:   fingerprint.Fingerprint(title, description, location),
	}

	res := Result{
		Posting: posting,
		Prior:   prior,
		Text:    match.NewMatchableText(title, description, location),
	}

	if prior == nil {
		res.IsNew = true
		res.ContentChanged = true
		return res
	}

	// Identity carries over from the prior record.
	res.Posting.FirstSeenAt = prior.FirstSeenAt
	res.ContentChanged = posting.Fingerprint != prior.Fingerprint
	return res
}

// sanitize trims and collapses internal whitespace runs. Line structure is
// not preserved; matching and fingerprinting both operate on flat text.
func sanitize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
