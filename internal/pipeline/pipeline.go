// Package pipeline orchestrates one scan cycle: fetch each source, detect
// new and changed postings, evaluate matches, deliver notifications, and
// record delivered alerts in the ledger.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avasilyev/jobscout/internal/fingerprint"
	"github.com/avasilyev/jobscout/internal/match"
	"github.com/avasilyev/jobscout/internal/model"
	"github.com/avasilyev/jobscout/internal/normalize"
)

// Source pairs a configured source with its (decorated) fetcher.
type Source struct {
	Name    string
	Kind    string
	Account string
	Fetcher model.PostingFetcher
}

func (s Source) label() string {
	return s.Kind + "/" + s.Account
}

// Pipeline runs scan cycles over a fixed set of sources. Runs never overlap:
// if a cycle is still in flight when the next one is due, the new one is
// skipped entirely rather than queued.
type Pipeline struct {
	sources    []Source
	store      model.JobStore
	matcher    *match.Matcher
	normalizer *normalize.Normalizer
	notifier   model.Notifier
	logger     *slog.Logger
	maxJobs    int

	running sync.Mutex
}

// New assembles a pipeline. maxJobs caps how many postings are processed
// per source per run; zero means unlimited.
func New(sources []Source, store model.JobStore, matcher *match.Matcher, notifier model.Notifier, maxJobs int, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		sources:    sources,
		store:      store,
		matcher:    matcher,
		normalizer: normalize.New(logger),
		notifier:   notifier,
		logger:     logger,
		maxJobs:    maxJobs,
	}
}

// Run executes one scan cycle across all sources. Each source is processed
// in its own transaction, so one failing source never blocks or poisons the
// others. Returns immediately with Skipped set when a run is already active.
func (p *Pipeline) Run(ctx context.Context) RunResult {
	result := RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	if !p.running.TryLock() {
		p.logger.Warn("previous run still in progress, skipping this cycle", "run_id", result.RunID)
		result.Skipped = true
		result.FinishedAt = time.Now().UTC()
		return result
	}
	defer p.running.Unlock()

	logger := p.logger.With("run_id", result.RunID)
	logger.Info("scan cycle started", "sources", len(p.sources))

	for _, src := range p.sources {
		if ctx.Err() != nil {
			logger.Warn("scan cycle interrupted", "error", ctx.Err())
			break
		}
		stats := p.scanSource(ctx, logger, src)
		if stats.Failed {
			logger.Error("source scan failed", "source", stats.Source, "error", stats.Err)
		}
		result.Sources = append(result.Sources, stats)
	}

	result.FinishedAt = time.Now().UTC()
	totals := result.Totals()
	logger.Info("scan cycle finished",
		"duration", result.FinishedAt.Sub(result.StartedAt),
		"fetched", totals.Fetched,
		"new", totals.New,
		"changed", totals.Changed,
		"matched", totals.Matched,
		"notified", totals.Notified,
		"deduped", totals.Deduped,
		"failed_sources", result.FailedSources(),
	)
	return result
}

func (p *Pipeline) scanSource(ctx context.Context, logger *slog.Logger, src Source) SourceStats {
	stats := SourceStats{Source: src.label()}
	scanAt := time.Now().UTC()

	raw, err := src.Fetcher.FetchPostings(ctx)
	if err != nil {
		p.recordSourceError(ctx, src, scanAt, err)
		stats.Failed = true
		stats.Err = fmt.Errorf("fetching %s: %w", src.label(), err)
		return stats
	}
	stats.Fetched = len(raw)

	if p.maxJobs > 0 && len(raw) > p.maxJobs {
		logger.Warn("truncating source postings",
			"source", src.label(), "fetched", len(raw), "limit", p.maxJobs)
		raw = raw[:p.maxJobs]
	}

	tx, err := p.store.Begin(ctx)
	if err != nil {
		stats.Failed = true
		stats.Err = fmt.Errorf("beginning transaction for %s: %w", src.label(), err)
		return stats
	}
	defer tx.Rollback()

	if err := tx.UpsertSourceStatus(model.SourceStatus{
		Account:       src.Account,
		Name:          src.Name,
		Kind:          src.Kind,
		LastSuccessAt: &scanAt,
	}); err != nil {
		stats.Failed = true
		stats.Err = err
		return stats
	}

	for _, r := range raw {
		if r.ExternalID == "" {
			logger.Warn("skipping posting without external ID", "source", src.label(), "title", r.Title)
			continue
		}
		if err := p.processPosting(ctx, logger, tx, src, r, scanAt, &stats); err != nil {
			stats.Failed = true
			stats.Err = fmt.Errorf("processing posting %s from %s: %w", r.ExternalID, src.label(), err)
			return stats
		}
	}

	if err := tx.Commit(); err != nil {
		stats.Failed = true
		stats.Err = fmt.Errorf("committing %s: %w", src.label(), err)
		return stats
	}
	return stats
}

func (p *Pipeline) processPosting(ctx context.Context, logger *slog.Logger, tx model.StoreTx, src Source, raw model.RawPosting, scanAt time.Time, stats *SourceStats) error {
	jobKey := fingerprint.Identity(src.Kind, src.Account, raw.ExternalID)
	prior, err := tx.GetPosting(jobKey)
	if err != nil {
		return err
	}

	res := p.normalizer.Normalize(raw, src.Kind, src.Account, prior, scanAt)

	switch {
	case res.IsNew:
		stats.New++
	case res.ContentChanged:
		stats.Changed++
	default:
		stats.Unchanged++
	}

	if res.IsNew || res.ContentChanged {
		if err := tx.UpsertPosting(res.Posting); err != nil {
			return err
		}
	} else {
		// Unchanged postings only refresh their liveness marker; the
		// matcher is not consulted again for content it already saw.
		return tx.TouchLastSeen(jobKey, scanAt)
	}

	verdict := p.matcher.Evaluate(res.Text)
	if !verdict.IsMatch {
		return nil
	}
	stats.Matched++

	alreadyNotified, err := tx.HasAlert(jobKey, res.Posting.Fingerprint)
	if err != nil {
		return err
	}

	decision := Assemble(res, verdict, alreadyNotified)
	if !decision.ShouldNotify {
		stats.Deduped++
		logger.Debug("match suppressed by alert ledger",
			"source", src.label(), "title", res.Posting.Title, "fingerprint", res.Posting.Fingerprint)
		return nil
	}

	outcome := p.notifier.Deliver(ctx, decision)
	if !outcome.Delivered {
		// No ledger entry: the next run will see this version as
		// unnotified and try again.
		logger.Error("notification delivery failed",
			"source", src.label(), "title", res.Posting.Title,
			"attempts", outcome.Attempts, "error", outcome.Err)
		return nil
	}

	if err := tx.RecordAlert(jobKey, res.Posting.Fingerprint, time.Now().UTC()); err != nil {
		return err
	}
	stats.Notified++
	return nil
}

// recordSourceError writes the failure to the sources table in its own
// short transaction, so health stays observable even when the scan aborts.
func (p *Pipeline) recordSourceError(ctx context.Context, src Source, at time.Time, fetchErr error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		p.logger.Error("recording source error failed", "source", src.label(), "error", err)
		return
	}
	defer tx.Rollback()

	status := model.SourceStatus{
		Account:      src.Account,
		Name:         src.Name,
		Kind:         src.Kind,
		LastErrorAt:  &at,
		ErrorMessage: fetchErr.Error(),
	}
	if err := tx.UpsertSourceStatus(status); err != nil {
		p.logger.Error("recording source error failed", "source", src.label(), "error", err)
		return
	}
	if err := tx.Commit(); err != nil {
		p.logger.Error("recording source error failed", "source", src.label(), "error", err)
	}
}
