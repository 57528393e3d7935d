// Package notifier implements alert delivery channels. Every notifier
// reports a DeliveryOutcome; the pipeline records an alert in the ledger
// only when Delivered is true.
package notifier

import (
	"context"
	"log/slog"

	"github.com/avasilyev/jobscout/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes matches to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each match via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Deliver logs the match with its rationale. Logging does not fail, so the
// outcome is always delivered.
func (n *LogNotifier) Deliver(_ context.Context, d model.CandidateDecision) model.DeliveryOutcome {
	event := "job match"
	if !d.IsNew {
		event = "job match (updated)"
	}
	n.logger.Info(event,
		"company", d.Posting.Company,
		"title", d.Posting.Title,
		"location", d.Posting.Location,
		"url", d.Posting.URL,
		"matched", d.Verdict.MatchedTerms(),
		"summary", d.Verdict.Summary,
	)
	return model.DeliveryOutcome{Delivered: true, Attempts: 1}
}
