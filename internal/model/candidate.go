package model

import (
	"context"

	"github.com/avasilyev/jobscout/internal/match"
)

// CandidateDecision joins a normalized posting, its match verdict, and the
// alert-ledger lookup into the single object the notifier consumes.
type CandidateDecision struct {
	Posting Posting
	Verdict match.Verdict

	IsNew           bool
	ContentChanged  bool
	AlreadyNotified bool // ledger has (JobKey, Fingerprint)

	ShouldPersist bool // IsNew || ContentChanged
	ShouldNotify  bool // Verdict.IsMatch && !AlreadyNotified
}

// Notifier delivers a notification for a candidate decision. The caller
// records the alert-ledger entry if and only if the outcome reports
// Delivered; the notifier itself never touches the ledger.
type Notifier interface {
	Deliver(ctx context.Context, c CandidateDecision) DeliveryOutcome
}
