package pipeline

import (
	"github.com/avasilyev/jobscout/internal/match"
	"github.com/avasilyev/jobscout/internal/model"
	"github.com/avasilyev/jobscout/internal/normalize"
)

// Assemble folds a normalization result, a match verdict, and the ledger
// lookup into the final decision for one posting. The rules are fixed:
// persist anything new or changed, notify only matches whose exact content
// version has not been alerted before.
func Assemble(res normalize.Result, verdict match.Verdict, alreadyNotified bool) model.CandidateDecision {
	return model.CandidateDecision{
		Posting:         res.Posting,
		Verdict:         verdict,
		IsNew:           res.IsNew,
		ContentChanged:  res.ContentChanged,
		AlreadyNotified: alreadyNotified,
		ShouldPersist:   res.IsNew || res.ContentChanged,
		ShouldNotify:    verdict.IsMatch && !alreadyNotified,
	}
}
