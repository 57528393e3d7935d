package model

import (
	"context"
	"time"
)

// RawPosting is a job listing as returned by a source adapter, before
// normalization assigns it an identity and fingerprint.
type RawPosting struct {
	ExternalID  string     // posting ID in the source system
	Title       string     // job title
	Company     string     // company name (from source config)
	Location    string     // location string, empty when the source omits it
	Description string     // plain-text description (HTML already stripped)
	URL         string     // direct link to the posting
	PostedAt    *time.Time // nullable (not all APIs provide this)
	UpdatedAt   *time.Time // nullable, source-reported last update
}

// Posting is the canonical, persisted representation of one posting lineage.
// JobKey is stable across content changes; Fingerprint identifies one
// specific content version.
type Posting struct {
	JobKey        string
	SourceKind    string // ATS kind: greenhouse, lever, ashby
	SourceAccount string // company identifier in the ATS
	ExternalID    string
	Title         string
	Company       string
	Location      string // empty when unknown
	Description   string
	URL           string
	PostedAt      *time.Time
	UpdatedAt     *time.Time
	FirstSeenAt   time.Time // our clock, set on first encounter, never reset
	LastSeenAt    time.Time // our clock, refreshed every scan
	Fingerprint   string
}

// AlertRecord marks that a notification was delivered for one
// (JobKey, Fingerprint) content version.
type AlertRecord struct {
	JobKey      string
	Fingerprint string
	SentAt      time.Time
}

// SourceStatus tracks per-source fetch health for observability.
type SourceStatus struct {
	Account       string
	Name          string
	Kind          string
	LastSuccessAt *time.Time
	LastErrorAt   *time.Time
	ErrorMessage  string
}

// PostingFetcher fetches job postings from a source (e.g. Greenhouse).
type PostingFetcher interface {
	FetchPostings(ctx context.Context) ([]RawPosting, error)
}

// JobStore opens transactional sessions over the persisted job state.
// One StoreTx scopes one source's processing within a run.
type JobStore interface {
	Begin(ctx context.Context) (StoreTx, error)
	Close() error
}

// StoreTx is one transactional unit of work. Commit or Rollback must be
// called exactly once; Rollback after Commit is a no-op.
type StoreTx interface {
	// GetPosting returns the last-known record for a job key, or nil.
	GetPosting(jobKey string) (*Posting, error)
	// UpsertPosting writes the full record (insert or overwrite).
	UpsertPosting(p Posting) error
	// TouchLastSeen refreshes only last_seen_at for an unchanged posting.
	TouchLastSeen(jobKey string, ts time.Time) error

	// HasAlert reports whether a notification was already delivered for
	// this exact content version.
	HasAlert(jobKey, fingerprint string) (bool, error)
	// RecordAlert marks a version as notified. Duplicate inserts are no-ops.
	RecordAlert(jobKey, fingerprint string, sentAt time.Time) error

	UpsertSourceStatus(s SourceStatus) error

	Commit() error
	Rollback() error
}

// DeliveryOutcome reports the result of one notification attempt chain.
type DeliveryOutcome struct {
	Delivered bool
	Attempts  int
	Err       error
}
