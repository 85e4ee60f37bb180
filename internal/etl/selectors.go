package etl

import (
	"context"

	"github.com/nucleus/giftreco/internal/jobctx"
)

// Selectors builds the target lists each ETL stage runs over (C8). Backed by
// Postgres in internal/dbstore; a job wires the subset of methods its stage
// needs. jctx carries job_start_at so "today's activity" selectors can
// compute today_start_utc themselves.
type Selectors interface {
	// RankingTargets returns one target per configured genre whose ranking
	// page is due for a refresh.
	RankingTargets(ctx context.Context, jctx *jobctx.Context) ([]Target, error)

	// ItemTargets returns one target per item code discovered from ranking
	// pages collected since today_start_utc(jctx.JobStartAt).
	ItemTargets(ctx context.Context, jctx *jobctx.Context) ([]Target, error)

	// GenreTargets returns one target per genre ID referenced by an item or
	// ranking payload since today_start_utc but not yet present in the genre
	// table. Empty when nothing referencing a new genre was collected today.
	GenreTargets(ctx context.Context, jctx *jobctx.Context) ([]Target, error)

	// TagTargets returns one target per tag ID referenced by an item payload
	// since today_start_utc but not yet present in the tag table.
	TagTargets(ctx context.Context, jctx *jobctx.Context) ([]Target, error)

	// PendingFeatureItems returns item codes whose feature row is missing or
	// stale (C10).
	PendingFeatureItems(ctx context.Context, jctx *jobctx.Context) ([]string, error)

	// PendingEmbeddingItems returns item codes whose embedding is missing or
	// was computed against a superseded source text (C11/C12).
	PendingEmbeddingItems(ctx context.Context) ([]string, error)
}
