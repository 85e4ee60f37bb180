package dbstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nucleus/giftreco/internal/etl"
)

// Ledger implements etl.Ledger against apl.staging_ledger (C4).
type Ledger struct {
	store *Store
}

// NewLedger wraps store as an etl.Ledger.
func NewLedger(store *Store) *Ledger { return &Ledger{store: store} }

// GetLatestStatus returns the current content_hash/applied_version for the
// natural key, or nil if the row has never been staged.
func (l *Ledger) GetLatestStatus(ctx context.Context, source, entity, sourceID string) (*etl.LedgerStatus, error) {
	row := l.store.pool.QueryRow(ctx, `
SELECT content_hash, COALESCE(applied_version, ''), applied_at IS NOT NULL
FROM apl.staging_ledger
WHERE source = $1 AND entity = $2 AND source_id = $3`,
		source, entity, sourceID)

	var status etl.LedgerStatus
	if err := row.Scan(&status.ContentHash, &status.AppliedVersion, &status.HasApplied); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

// BatchUpsert inserts or updates staging rows. Any row whose content_hash
// changes has applied_at/applied_version reset to null, per §4.4.
func (l *Ledger) BatchUpsert(ctx context.Context, rows []etl.LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := l.store.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, r := range rows {
		if _, err := tx.Exec(ctx, `
INSERT INTO apl.staging_ledger (source, entity, source_id, content_hash, s3_key, etag, saved_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,now())
ON CONFLICT (source, entity, source_id) DO UPDATE SET
  content_hash    = EXCLUDED.content_hash,
  s3_key          = EXCLUDED.s3_key,
  etag            = EXCLUDED.etag,
  saved_at        = EXCLUDED.saved_at,
  applied_at      = CASE WHEN apl.staging_ledger.content_hash IS DISTINCT FROM EXCLUDED.content_hash THEN NULL ELSE apl.staging_ledger.applied_at END,
  applied_version = CASE WHEN apl.staging_ledger.content_hash IS DISTINCT FROM EXCLUDED.content_hash THEN NULL ELSE apl.staging_ledger.applied_version END,
  updated_at      = now()`,
			r.Source, r.Entity, r.SourceID, r.ContentHash, r.S3Key, nullIfEmpty(r.ETag), r.SavedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// MarkApplied sets applied_at/applied_version, guarded by content_hash so a
// concurrent job can't mark a stale payload applied.
func (l *Ledger) MarkApplied(ctx context.Context, source, entity, sourceID, contentHash, appliedVersion string) error {
	_, err := l.store.pool.Exec(ctx, `
UPDATE apl.staging_ledger
SET applied_at = $1, applied_version = $2, updated_at = now()
WHERE source = $3 AND entity = $4 AND source_id = $5 AND content_hash = $6`,
		time.Now().UTC(), appliedVersion, source, entity, sourceID, contentHash)
	return err
}

// ItemSourceIDsSince returns distinct rakuten item codes staged at or after
// ts (fetch_item_source_ids_since, §4.4).
func (l *Ledger) ItemSourceIDsSince(ctx context.Context, ts time.Time) ([]string, error) {
	rows, err := l.store.pool.Query(ctx, `
SELECT DISTINCT source_id FROM apl.staging_ledger
WHERE source = $1 AND entity = $2 AND saved_at >= $3`,
		etl.Source, string(etl.KindItem), ts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
