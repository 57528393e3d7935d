// Package store persists postings, the alert ledger, and source health in
// SQLite. All pipeline writes go through a transaction so one source's scan
// commits or rolls back as a unit.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/avasilyev/jobscout/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_key        TEXT PRIMARY KEY,
	source_kind    TEXT NOT NULL,
	source_account TEXT NOT NULL,
	external_id    TEXT NOT NULL,
	title          TEXT NOT NULL,
	company        TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL DEFAULT '',
	posted_at      TEXT,
	updated_at     TEXT,
	first_seen_at  TEXT NOT NULL,
	last_seen_at   TEXT NOT NULL,
	fingerprint    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_source ON jobs(source_kind, source_account);
CREATE INDEX IF NOT EXISTS idx_jobs_last_seen ON jobs(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_jobs_fingerprint ON jobs(fingerprint);

CREATE TABLE IF NOT EXISTS alerts_sent (
	job_key     TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	sent_at     TEXT NOT NULL,
	PRIMARY KEY (job_key, fingerprint)
);

CREATE TABLE IF NOT EXISTS sources (
	account         TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	kind            TEXT NOT NULL,
	last_success_at TEXT,
	last_error_at   TEXT,
	error_message   TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore is the durable model.JobStore backed by a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and ensures the schema
// exists.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Begin starts a write transaction scoped to one source scan.
func (s *SQLiteStore) Begin(ctx context.Context) (model.StoreTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListPostings returns all stored postings ordered by most recently seen.
// Used by the inspect TUI and the jobs command, outside any pipeline run.
func (s *SQLiteStore) ListPostings(ctx context.Context) ([]model.Posting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postingColumns+` FROM jobs ORDER BY last_seen_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	defer rows.Close()

	var postings []model.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// AlertsForPosting returns the alert history for one posting, oldest first.
func (s *SQLiteStore) AlertsForPosting(ctx context.Context, jobKey string) ([]model.AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_key, fingerprint, sent_at FROM alerts_sent WHERE job_key = ? ORDER BY sent_at`, jobKey)
	if err != nil {
		return nil, fmt.Errorf("listing alerts for %s: %w", jobKey, err)
	}
	defer rows.Close()

	var alerts []model.AlertRecord
	for rows.Next() {
		var rec model.AlertRecord
		var sentAt string
		if err := rows.Scan(&rec.JobKey, &rec.Fingerprint, &sentAt); err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		if rec.SentAt, err = parseTime(sentAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, rec)
	}
	return alerts, rows.Err()
}

// ListSources returns the recorded health of every source ever scanned.
func (s *SQLiteStore) ListSources(ctx context.Context) ([]model.SourceStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account, name, kind, last_success_at, last_error_at, error_message FROM sources ORDER BY account`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []model.SourceStatus
	for rows.Next() {
		var st model.SourceStatus
		var success, failure sql.NullString
		if err := rows.Scan(&st.Account, &st.Name, &st.Kind, &success, &failure, &st.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		if st.LastSuccessAt, err = parseNullTime(success); err != nil {
			return nil, err
		}
		if st.LastErrorAt, err = parseNullTime(failure); err != nil {
			return nil, err
		}
		sources = append(sources, st)
	}
	return sources, rows.Err()
}

type sqliteTx struct {
	tx *sql.Tx
}

const postingColumns = `job_key, source_kind, source_account, external_id, title, company,
	location, description, url, posted_at, updated_at, first_seen_at, last_seen_at, fingerprint`

func (t *sqliteTx) GetPosting(jobKey string) (*model.Posting, error) {
	row := t.tx.QueryRow(`SELECT `+postingColumns+` FROM jobs WHERE job_key = ?`, jobKey)
	p, err := scanPosting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting posting %s: %w", jobKey, err)
	}
	return &p, nil
}

func (t *sqliteTx) UpsertPosting(p model.Posting) error {
	_, err := t.tx.Exec(`
		INSERT INTO jobs (`+postingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_key) DO UPDATE SET
			title = excluded.title,
			company = excluded.company,
			location = excluded.location,
			description = excluded.description,
			url = excluded.url,
			posted_at = excluded.posted_at,
			updated_at = excluded.updated_at,
			last_seen_at = excluded.last_seen_at,
			fingerprint = excluded.fingerprint`,
		p.JobKey, p.SourceKind, p.SourceAccount, p.ExternalID, p.Title, p.Company,
		p.Location, p.Description, p.URL, formatNullTime(p.PostedAt), formatNullTime(p.UpdatedAt),
		formatTime(p.FirstSeenAt), formatTime(p.LastSeenAt), p.Fingerprint)
	if err != nil {
		return fmt.Errorf("upserting posting %s: %w", p.JobKey, err)
	}
	return nil
}

func (t *sqliteTx) TouchLastSeen(jobKey string, ts time.Time) error {
	_, err := t.tx.Exec(`UPDATE jobs SET last_seen_at = ? WHERE job_key = ?`, formatTime(ts), jobKey)
	if err != nil {
		return fmt.Errorf("touching posting %s: %w", jobKey, err)
	}
	return nil
}

func (t *sqliteTx) HasAlert(jobKey, fp string) (bool, error) {
	var exists int
	err := t.tx.QueryRow(`SELECT 1 FROM alerts_sent WHERE job_key = ? AND fingerprint = ?`, jobKey, fp).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking alert for %s: %w", jobKey, err)
	}
	return true, nil
}

// RecordAlert marks a (posting, content version) pair as notified. Duplicate
// inserts are silently ignored so retried runs stay idempotent.
func (t *sqliteTx) RecordAlert(jobKey, fp string, sentAt time.Time) error {
	_, err := t.tx.Exec(`INSERT OR IGNORE INTO alerts_sent (job_key, fingerprint, sent_at) VALUES (?, ?, ?)`,
		jobKey, fp, formatTime(sentAt))
	if err != nil {
		return fmt.Errorf("recording alert for %s: %w", jobKey, err)
	}
	return nil
}

func (t *sqliteTx) UpsertSourceStatus(st model.SourceStatus) error {
	_, err := t.tx.Exec(`
		INSERT INTO sources (account, name, kind, last_success_at, last_error_at, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			last_success_at = COALESCE(excluded.last_success_at, sources.last_success_at),
			last_error_at = COALESCE(excluded.last_error_at, sources.last_error_at),
			error_message = excluded.error_message`,
		st.Account, st.Name, st.Kind, formatNullTime(st.LastSuccessAt), formatNullTime(st.LastErrorAt), st.ErrorMessage)
	if err != nil {
		return fmt.Errorf("upserting source %s: %w", st.Account, err)
	}
	return nil
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(row rowScanner) (model.Posting, error) {
	var p model.Posting
	var postedAt, updatedAt sql.NullString
	var firstSeen, lastSeen string
	err := row.Scan(&p.JobKey, &p.SourceKind, &p.SourceAccount, &p.ExternalID, &p.Title, &p.Company,
		&p.Location, &p.Description, &p.URL, &postedAt, &updatedAt, &firstSeen, &lastSeen, &p.Fingerprint)
	if err != nil {
		return p, err
	}
	if p.PostedAt, err = parseNullTime(postedAt); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
		return p, err
	}
	if p.FirstSeenAt, err = parseTime(firstSeen); err != nil {
		return p, err
	}
	if p.LastSeenAt, err = parseTime(lastSeen); err != nil {
		return p, err
	}
	return p, nil
}

// Timestamps are stored as RFC 3339 text so they sort lexically and stay
// readable in sqlite3.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
