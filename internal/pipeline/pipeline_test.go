package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/avasilyev/jobscout/internal/match"
	"github.com/avasilyev/jobscout/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory JobStore with real transaction semantics:
// writes are staged per transaction and only visible after Commit.
type memStore struct {
	mu       sync.Mutex
	postings map[string]model.Posting
	alerts   map[string]time.Time // key: jobKey + "\n" + fingerprint
	sources  map[string]model.SourceStatus
}

func newMemStore() *memStore {
	return &memStore{
		postings: make(map[string]model.Posting),
		alerts:   make(map[string]time.Time),
		sources:  make(map[string]model.SourceStatus),
	}
}

func (s *memStore) Begin(_ context.Context) (model.StoreTx, error) {
	return &memTx{
		store:    s,
		postings: make(map[string]model.Posting),
		touches:  make(map[string]time.Time),
		alerts:   make(map[string]time.Time),
		sources:  make(map[string]model.SourceStatus),
	}, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) alertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

type memTx struct {
	store    *memStore
	postings map[string]model.Posting
	touches  map[string]time.Time
	alerts   map[string]time.Time
	sources  map[string]model.SourceStatus
	done     bool
}

func (t *memTx) GetPosting(jobKey string) (*model.Posting, error) {
	if p, ok := t.postings[jobKey]; ok {
		return &p, nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if p, ok := t.store.postings[jobKey]; ok {
		return &p, nil
	}
	return nil, nil
}

func (t *memTx) UpsertPosting(p model.Posting) error {
	t.postings[p.JobKey] = p
	return nil
}

func (t *memTx) TouchLastSeen(jobKey string, ts time.Time) error {
	t.touches[jobKey] = ts
	return nil
}

func (t *memTx) HasAlert(jobKey, fp string) (bool, error) {
	key := jobKey + "\n" + fp
	if _, ok := t.alerts[key]; ok {
		return true, nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	_, ok := t.store.alerts[key]
	return ok, nil
}

func (t *memTx) RecordAlert(jobKey, fp string, sentAt time.Time) error {
	key := jobKey + "\n" + fp
	if _, ok := t.alerts[key]; !ok {
		t.alerts[key] = sentAt
	}
	return nil
}

func (t *memTx) UpsertSourceStatus(st model.SourceStatus) error {
	t.sources[st.Account] = st
	return nil
}

func (t *memTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for k, p := range t.postings {
		t.store.postings[k] = p
	}
	for k, ts := range t.touches {
		if p, ok := t.store.postings[k]; ok {
			p.LastSeenAt = ts
			t.store.postings[k] = p
		}
	}
	for k, ts := range t.alerts {
		if _, ok := t.store.alerts[k]; !ok {
			t.store.alerts[k] = ts
		}
	}
	for k, st := range t.sources {
		prev := t.store.sources[k]
		if st.LastSuccessAt == nil {
			st.LastSuccessAt = prev.LastSuccessAt
		}
		if st.LastErrorAt == nil {
			st.LastErrorAt = prev.LastErrorAt
		}
		t.store.sources[k] = st
	}
	t.done = true
	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}

// stubFetcher returns a fixed set of postings (or an error).
type stubFetcher struct {
	postings []model.RawPosting
	err      error
	calls    int
}

func (f *stubFetcher) FetchPostings(_ context.Context) ([]model.RawPosting, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.postings, nil
}

// recordingNotifier captures every delivery and can be told to fail.
type recordingNotifier struct {
	mu        sync.Mutex
	delivered []model.CandidateDecision
	fail      bool
}

func (n *recordingNotifier) Deliver(_ context.Context, d model.CandidateDecision) model.DeliveryOutcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return model.DeliveryOutcome{Attempts: 1, Err: errors.New("smtp down")}
	}
	n.delivered = append(n.delivered, d)
	return model.DeliveryOutcome{Delivered: true, Attempts: 1}
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.delivered)
}

func mustMatcher(t *testing.T, required []string) *match.Matcher {
	t.Helper()
	c, err := match.NewCriteria(required, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return match.NewMatcher(c)
}

func matchingPosting(id string) model.RawPosting {
	return model.RawPosting{
		ExternalID:  id,
		Title:       "Backend Engineer",
		Description: "We use Python every day.",
		Location:    "Remote",
		URL:         "https://example.com/jobs/" + id,
	}
}

func newTestPipeline(t *testing.T, store model.JobStore, n model.Notifier, sources ...Source) *Pipeline {
	t.Helper()
	return New(sources, store, mustMatcher(t, []string{"python"}), n, 0, discardLogger())
}

func TestRun_NewMatchNotifiedOnce(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	fetcher := &stubFetcher{postings: []model.RawPosting{matchingPosting("1")}}
	p := newTestPipeline(t, store, notifier, Source{Name: "Acme", Kind: "greenhouse", Account: "acme", Fetcher: fetcher})

	result := p.Run(context.Background())
	if result.Skipped {
		t.Fatal("run should not be skipped")
	}
	if notifier.count() != 1 {
		t.Fatalf("delivered = %d, want 1", notifier.count())
	}
	if store.alertCount() != 1 {
		t.Fatalf("ledger entries = %d, want 1", store.alertCount())
	}
	stats := result.Sources[0]
	if stats.New != 1 || stats.Matched != 1 || stats.Notified != 1 {
		t.Errorf("stats = %+v", stats)
	}

	// Second run: identical content, no new notification.
	result = p.Run(context.Background())
	if notifier.count() != 1 {
		t.Fatalf("delivered = %d after re-scan, want 1", notifier.count())
	}
	stats = result.Sources[0]
	if stats.Unchanged != 1 || stats.Notified != 0 {
		t.Errorf("re-scan stats = %+v", stats)
	}
}

func TestRun_ContentChangeReNotifies(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	fetcher := &stubFetcher{postings: []model.RawPosting{matchingPosting("1")}}
	p := newTestPipeline(t, store, notifier, Source{Kind: "greenhouse", Account: "acme", Fetcher: fetcher})

	p.Run(context.Background())

	// Description edit produces a new fingerprint and a second alert.
	changed := matchingPosting("1")
	changed.Description = "We use Python and Go every day."
	fetcher.postings = []model.RawPosting{changed}
	result := p.Run(context.Background())

	if notifier.count() != 2 {
		t.Fatalf("delivered = %d, want 2", notifier.count())
	}
	if store.alertCount() != 2 {
		t.Fatalf("ledger entries = %d, want 2", store.alertCount())
	}
	if result.Sources[0].Changed != 1 {
		t.Errorf("stats = %+v", result.Sources[0])
	}

	last := notifier.delivered[1]
	if last.IsNew {
		t.Error("changed posting must not be flagged new")
	}
	if !last.ContentChanged {
		t.Error("changed posting must be flagged changed")
	}
}

func TestRun_RevertedContentNotReAlerted(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	original := matchingPosting("1")
	fetcher := &stubFetcher{postings: []model.RawPosting{original}}
	p := newTestPipeline(t, store, notifier, Source{Kind: "greenhouse", Account: "acme", Fetcher: fetcher})

	p.Run(context.Background())

	changed := matchingPosting("1")
	changed.Description = "We use Python and Go every day."
	fetcher.postings = []model.RawPosting{changed}
	p.Run(context.Background())

	// Revert to the first version: its fingerprint is already in the ledger.
	fetcher.postings = []model.RawPosting{original}
	result := p.Run(context.Background())

	if notifier.count() != 2 {
		t.Fatalf("delivered = %d, want 2 (revert suppressed)", notifier.count())
	}
	if result.Sources[0].Deduped != 1 {
		t.Errorf("stats = %+v, want Deduped=1", result.Sources[0])
	}
}

func TestRun_FailedDeliveryLeavesNoLedgerEntry(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{fail: true}
	fetcher := &stubFetcher{postings: []model.RawPosting{matchingPosting("1")}}
	p := newTestPipeline(t, store, notifier, Source{Kind: "greenhouse", Account: "acme", Fetcher: fetcher})

	result := p.Run(context.Background())
	if store.alertCount() != 0 {
		t.Fatalf("ledger entries = %d, want 0 after failed delivery", store.alertCount())
	}
	if result.Sources[0].Failed {
		t.Error("failed delivery must not fail the source scan")
	}
	if result.Sources[0].Notified != 0 {
		t.Errorf("stats = %+v", result.Sources[0])
	}

	// The posting itself is still persisted, so the next run sees it as
	// unchanged but unnotified and retries delivery.
	notifier.fail = false
	p.Run(context.Background())
	if notifier.count() != 0 {
		// Unchanged content is not re-evaluated; recovery happens when
		// content changes or via operator intervention.
		t.Fatalf("delivered = %d, want 0", notifier.count())
	}
}

func TestRun_SourceFailureIsolated(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	good1 := &stubFetcher{postings: []model.RawPosting{matchingPosting("1")}}
	bad := &stubFetcher{err: errors.New("connection refused")}
	good2 := &stubFetcher{postings: []model.RawPosting{matchingPosting("2")}}
	p := newTestPipeline(t, store, notifier,
		Source{Kind: "greenhouse", Account: "alpha", Fetcher: good1},
		Source{Kind: "lever", Account: "bravo", Fetcher: bad},
		Source{Kind: "ashby", Account: "charlie", Fetcher: good2},
	)

	result := p.Run(context.Background())

	if result.FailedSources() != 1 {
		t.Fatalf("failed sources = %d, want 1", result.FailedSources())
	}
	if notifier.count() != 2 {
		t.Fatalf("delivered = %d, want 2 (healthy sources unaffected)", notifier.count())
	}
	if !result.Sources[1].Failed || result.Sources[1].Err == nil {
		t.Errorf("middle source stats = %+v", result.Sources[1])
	}

	// The failure is recorded in source health.
	store.mu.Lock()
	st := store.sources["bravo"]
	store.mu.Unlock()
	if st.LastErrorAt == nil || st.ErrorMessage == "" {
		t.Errorf("source status = %+v, want recorded error", st)
	}
}

func TestRun_NonMatchPersistedNotNotified(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	posting := matchingPosting("1")
	posting.Description = "We only use COBOL."
	fetcher := &stubFetcher{postings: []model.RawPosting{posting}}
	p := newTestPipeline(t, store, notifier, Source{Kind: "greenhouse", Account: "acme", Fetcher: fetcher})

	result := p.Run(context.Background())

	if notifier.count() != 0 {
		t.Fatalf("delivered = %d, want 0", notifier.count())
	}
	store.mu.Lock()
	stored := len(store.postings)
	store.mu.Unlock()
	if stored != 1 {
		t.Fatalf("stored postings = %d, want 1 (non-matches are still tracked)", stored)
	}
	if result.Sources[0].New != 1 || result.Sources[0].Matched != 0 {
		t.Errorf("stats = %+v", result.Sources[0])
	}
}

func TestRun_ExcludedTermVetoAcrossRuns(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}

	vetoed := matchingPosting("2")
	vetoed.Title = "Backend Engineer Intern"
	fetcher := &stubFetcher{postings: []model.RawPosting{matchingPosting("1"), vetoed}}

	c, err := match.NewCriteria([]string{"python"}, nil, []string{"intern"})
	if err != nil {
		t.Fatal(err)
	}
	p := New(
		[]Source{{Kind: "greenhouse", Account: "acme", Fetcher: fetcher}},
		store, match.NewMatcher(c), notifier, 0, discardLogger(),
	)

	p.Run(context.Background())
	result := p.Run(context.Background())

	if notifier.count() != 1 {
		t.Fatalf("delivered = %d, want 1 (veto holds across runs)", notifier.count())
	}
	if store.alertCount() != 1 {
		t.Fatalf("ledger entries = %d, want 1", store.alertCount())
	}
	if notifier.delivered[0].Posting.ExternalID != "1" {
		t.Errorf("delivered posting = %q, want %q", notifier.delivered[0].Posting.ExternalID, "1")
	}
	store.mu.Lock()
	stored := len(store.postings)
	store.mu.Unlock()
	if stored != 2 {
		t.Fatalf("stored postings = %d, want 2 (vetoed posting still tracked)", stored)
	}
	if result.Sources[0].Unchanged != 2 || result.Sources[0].Notified != 0 {
		t.Errorf("re-scan stats = %+v", result.Sources[0])
	}
}

func TestRun_SingleFlight(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}

	release := make(chan struct{})
	slow := &blockingFetcher{started: make(chan struct{}), release: release}
	p := newTestPipeline(t, store, notifier, Source{Kind: "greenhouse", Account: "acme", Fetcher: slow})

	var wg sync.WaitGroup
	wg.Add(1)
	var first RunResult
	go func() {
		defer wg.Done()
		first = p.Run(context.Background())
	}()

	<-slow.started
	second := p.Run(context.Background())
	close(release)
	wg.Wait()

	if first.Skipped {
		t.Error("first run must not be skipped")
	}
	if !second.Skipped {
		t.Error("overlapping run must be skipped")
	}
	if len(second.Sources) != 0 {
		t.Error("skipped run must not touch any source")
	}
}

type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
}

func (f *blockingFetcher) FetchPostings(_ context.Context) ([]model.RawPosting, error) {
	close(f.started)
	<-f.release
	return nil, nil
}

func TestRun_MaxJobsTruncation(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	fetcher := &stubFetcher{postings: []model.RawPosting{
		matchingPosting("1"), matchingPosting("2"), matchingPosting("3"),
	}}
	p := New(
		[]Source{{Kind: "greenhouse", Account: "acme", Fetcher: fetcher}},
		store, mustMatcher(t, []string{"python"}), notifier, 2, discardLogger(),
	)

	p.Run(context.Background())

	store.mu.Lock()
	stored := len(store.postings)
	store.mu.Unlock()
	if stored != 2 {
		t.Fatalf("stored postings = %d, want 2 (truncated)", stored)
	}
}

func TestRun_DuplicateExternalIDsCollapse(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	// The same posting listed twice in one payload maps to one identity.
	fetcher := &stubFetcher{postings: []model.RawPosting{matchingPosting("1"), matchingPosting("1")}}
	p := newTestPipeline(t, store, notifier, Source{Kind: "greenhouse", Account: "acme", Fetcher: fetcher})

	p.Run(context.Background())

	if notifier.count() != 1 {
		t.Fatalf("delivered = %d, want 1", notifier.count())
	}
	if store.alertCount() != 1 {
		t.Fatalf("ledger entries = %d, want 1", store.alertCount())
	}
}
