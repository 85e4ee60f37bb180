package etl

import (
	"context"
	"time"

	"github.com/nucleus/giftreco/internal/objectstore"
)

// LedgerStatus is what get_latest_status (C4) returns for a known row.
type LedgerStatus struct {
	ContentHash    string
	AppliedVersion string
	HasApplied     bool
}

// LedgerRow is a batch_upsert (C4) input row.
type LedgerRow struct {
	Source      string
	Entity      string
	SourceID    string
	ContentHash string
	S3Key       string
	ETag        string
	SavedAt     time.Time
}

// Ledger is the Staging Ledger (C4) abstraction the orchestrator depends on.
// Implemented against Postgres in internal/dbstore.
type Ledger interface {
	GetLatestStatus(ctx context.Context, source, entity, sourceID string) (*LedgerStatus, error)
	BatchUpsert(ctx context.Context, rows []LedgerRow) error
	MarkApplied(ctx context.Context, source, entity, sourceID, contentHash, appliedVersion string) error
}

// ObjectStore is the C3 Raw Object Writer dependency the orchestrator needs.
type ObjectStore = objectstore.Store
