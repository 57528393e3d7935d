package pipeline

import "time"

// SourceStats counts what happened to one source during a run.
type SourceStats struct {
	Source    string // kind/account
	Fetched   int
	New       int
	Changed   int
	Unchanged int
	Matched   int
	Notified  int
	Deduped   int // matches suppressed by the alert ledger
	Failed    bool
	Err       error
}

// RunResult aggregates one complete scan cycle.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Skipped    bool // a previous run was still in flight
	Sources    []SourceStats
}

// Totals sums the per-source counters, skipping failed sources.
func (r RunResult) Totals() SourceStats {
	var t SourceStats
	for _, s := range r.Sources {
		if s.Failed {
			continue
		}
		t.Fetched += s.Fetched
		t.New += s.New
		t.Changed += s.Changed
		t.Unchanged += s.Unchanged
		t.Matched += s.Matched
		t.Notified += s.Notified
		t.Deduped += s.Deduped
	}
	return t
}

// FailedSources returns how many sources errored out this run.
func (r RunResult) FailedSources() int {
	n := 0
	for _, s := range r.Sources {
		if s.Failed {
			n++
		}
	}
	return n
}
