package store

import (
	"context"
	"time"

	"github.com/avasilyev/jobscout/internal/model"
)

// NopStore is a no-op store used in dry-run mode. It remembers nothing, so
// every posting appears new on each scan and nothing is ever deduplicated.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Begin(ctx context.Context) (model.StoreTx, error) { return nopTx{}, nil }
func (s *NopStore) Close() error                                     { return nil }

type nopTx struct{}

func (nopTx) GetPosting(jobKey string) (*model.Posting, error)      { return nil, nil }
func (nopTx) UpsertPosting(p model.Posting) error                   { return nil }
func (nopTx) TouchLastSeen(jobKey string, ts time.Time) error       { return nil }
func (nopTx) HasAlert(jobKey, fp string) (bool, error)              { return false, nil }
func (nopTx) RecordAlert(jobKey, fp string, sentAt time.Time) error { return nil }
func (nopTx) UpsertSourceStatus(st model.SourceStatus) error        { return nil }
func (nopTx) Commit() error                                         { return nil }
func (nopTx) Rollback() error                                       { return nil }
