package etl

import (
	"context"
	"errors"
	"testing"

	"github.com/nucleus/giftreco/internal/ferrors"
	"github.com/nucleus/giftreco/internal/jobctx"
	"github.com/nucleus/giftreco/internal/objectstore"
)

type fakeLedger struct {
	rows    map[string]LedgerStatus
	upserts []LedgerRow
	applied []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[string]LedgerStatus{}}
}

func (f *fakeLedger) key(source, entity, sourceID string) string {
	return source + "|" + entity + "|" + sourceID
}

func (f *fakeLedger) GetLatestStatus(ctx context.Context, source, entity, sourceID string) (*LedgerStatus, error) {
	if s, ok := f.rows[f.key(source, entity, sourceID)]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeLedger) BatchUpsert(ctx context.Context, rows []LedgerRow) error {
	for _, r := range rows {
		f.rows[f.key(r.Source, r.Entity, r.SourceID)] = LedgerStatus{ContentHash: r.ContentHash}
		f.upserts = append(f.upserts, r)
	}
	return nil
}

func (f *fakeLedger) MarkApplied(ctx context.Context, source, entity, sourceID, contentHash, appliedVersion string) error {
	k := f.key(source, entity, sourceID)
	s := f.rows[k]
	s.ContentHash = contentHash
	s.AppliedVersion = appliedVersion
	s.HasApplied = true
	f.rows[k] = s
	f.applied = append(f.applied, k)
	return nil
}

func TestOrchestratorRun_NewTargetAppliesAndStores(t *testing.T) {
	ledger := newFakeLedger()
	store := objectstore.NewLocalStore(t.TempDir())
	o := &Orchestrator{Ledger: ledger, Store: store, Bucket: "raw"}

	target := Target{Kind: KindItem, ItemCode: "abc123"}
	var applyCalls int
	fetch := func(ctx context.Context, tg Target) (any, error) {
		return map[string]any{"itemCode": "abc123", "itemName": "Gift Box"}, nil
	}
	apply := func(ctx context.Context, jctx *jobctx.Context, payload any, tg Target) error {
		applyCalls++
		return nil
	}

	result, err := o.Run(context.Background(), jobctx.New("test", false), []Target{target}, fetch, nil, apply)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SuccessCount != 1 || result.FailureCount != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if applyCalls != 1 {
		t.Fatalf("expected 1 apply call, got %d", applyCalls)
	}
	if len(ledger.upserts) != 1 {
		t.Fatalf("expected 1 ledger upsert, got %d", len(ledger.upserts))
	}
}

func TestOrchestratorRun_UnchangedContentSkipsStoreAndApply(t *testing.T) {
	ledger := newFakeLedger()
	store := objectstore.NewLocalStore(t.TempDir())
	o := &Orchestrator{Ledger: ledger, Store: store, Bucket: "raw"}

	target := Target{Kind: KindItem, ItemCode: "abc123"}
	fetch := func(ctx context.Context, tg Target) (any, error) {
		return map[string]any{"itemCode": "abc123", "itemName": "Gift Box"}, nil
	}
	var applyCalls int
	apply := func(ctx context.Context, jctx *jobctx.Context, payload any, tg Target) error {
		applyCalls++
		return nil
	}

	jctx := jobctx.New("test", false)
	if _, err := o.Run(context.Background(), jctx, []Target{target}, fetch, nil, apply); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if applyCalls != 1 {
		t.Fatalf("expected 1 apply on first run, got %d", applyCalls)
	}

	result, err := o.Run(context.Background(), jobctx.New("test", false), []Target{target}, fetch, nil, apply)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if applyCalls != 1 {
		t.Fatalf("expected no additional apply call for unchanged content, got %d total", applyCalls)
	}
	if result.SuccessCount != 1 {
		t.Fatalf("unchanged target should still count as success, got %+v", result)
	}
}

func TestOrchestratorRun_DryRunSkipsWrite(t *testing.T) {
	ledger := newFakeLedger()
	store := objectstore.NewLocalStore(t.TempDir())
	o := &Orchestrator{Ledger: ledger, Store: store, Bucket: "raw"}

	target := Target{Kind: KindItem, ItemCode: "abc123"}
	fetch := func(ctx context.Context, tg Target) (any, error) {
		return map[string]any{"itemCode": "abc123"}, nil
	}
	var applyCalls int
	apply := func(ctx context.Context, jctx *jobctx.Context, payload any, tg Target) error {
		applyCalls++
		return nil
	}

	jctx := jobctx.New("test", true)
	result, err := o.Run(context.Background(), jctx, []Target{target}, fetch, nil, apply)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if applyCalls != 0 {
		t.Fatalf("dry run must not apply, got %d calls", applyCalls)
	}
	if len(ledger.upserts) != 0 {
		t.Fatalf("dry run must not write to ledger, got %d upserts", len(ledger.upserts))
	}
	if result.SuccessCount != 1 {
		t.Fatalf("dry run skip should still count as success: %+v", result)
	}
}

func TestOrchestratorRun_FetchErrorCountsAsFailureAndContinues(t *testing.T) {
	ledger := newFakeLedger()
	store := objectstore.NewLocalStore(t.TempDir())
	o := &Orchestrator{Ledger: ledger, Store: store, Bucket: "raw"}

	targets := []Target{
		{Kind: KindItem, ItemCode: "bad"},
		{Kind: KindItem, ItemCode: "good"},
	}
	fetch := func(ctx context.Context, tg Target) (any, error) {
		if tg.ItemCode == "bad" {
			return nil, errors.New("upstream boom")
		}
		return map[string]any{"itemCode": tg.ItemCode}, nil
	}
	apply := func(ctx context.Context, jctx *jobctx.Context, payload any, tg Target) error {
		return nil
	}

	result, err := o.Run(context.Background(), jobctx.New("test", false), targets, fetch, nil, apply)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.TotalTargets != 2 || result.SuccessCount != 1 || result.FailureCount != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.FailureRate != 0.5 {
		t.Fatalf("expected failure rate 0.5, got %f", result.FailureRate)
	}
}

func TestOrchestratorRun_LogicErrorFromApplyCountsAsSuccess(t *testing.T) {
	ledger := newFakeLedger()
	store := objectstore.NewLocalStore(t.TempDir())
	o := &Orchestrator{Ledger: ledger, Store: store, Bucket: "raw"}

	target := Target{Kind: KindGenre, GenreID: 42}
	fetch := func(ctx context.Context, tg Target) (any, error) {
		return map[string]any{"genreId": 42, "parentGenreId": 41}, nil
	}
	apply := func(ctx context.Context, jctx *jobctx.Context, payload any, tg Target) error {
		return ferrors.Logic(errors.New("unresolvable parent genre chain"))
	}

	result, err := o.Run(context.Background(), jobctx.New("test", false), []Target{target}, fetch, nil, apply)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SuccessCount != 1 || result.FailureCount != 0 {
		t.Fatalf("logic skip should count as success, got %+v", result)
	}
}

func TestOrchestratorRun_ContextCancelledStopsBetweenTargets(t *testing.T) {
	ledger := newFakeLedger()
	store := objectstore.NewLocalStore(t.TempDir())
	o := &Orchestrator{Ledger: ledger, Store: store, Bucket: "raw"}

	ctx, cancel := context.WithCancel(context.Background())
	targets := []Target{
		{Kind: KindItem, ItemCode: "one"},
		{Kind: KindItem, ItemCode: "two"},
	}
	fetch := func(ctx context.Context, tg Target) (any, error) {
		cancel()
		return map[string]any{"itemCode": tg.ItemCode}, nil
	}
	apply := func(ctx context.Context, jctx *jobctx.Context, payload any, tg Target) error {
		return nil
	}

	result, err := o.Run(ctx, jobctx.New("test", false), targets, fetch, nil, apply)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.SuccessCount != 1 {
		t.Fatalf("expected exactly 1 target processed before cancellation, got %+v", result)
	}
}

func TestOrchestratorRun_ReapplyOnVersionBump(t *testing.T) {
	ledger := newFakeLedger()
	store := objectstore.NewLocalStore(t.TempDir())
	o := &Orchestrator{Ledger: ledger, Store: store, Bucket: "raw"}

	target := Target{Kind: KindItem, ItemCode: "abc123"}
	fetch := func(ctx context.Context, tg Target) (any, error) {
		return map[string]any{"itemCode": "abc123"}, nil
	}
	var applyCalls int
	apply := func(ctx context.Context, jctx *jobctx.Context, payload any, tg Target) error {
		applyCalls++
		return nil
	}

	v1 := "features-v1"
	if _, err := o.Run(context.Background(), jobctx.New("test", false), []Target{target}, fetch, &v1, apply); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if applyCalls != 1 {
		t.Fatalf("expected 1 apply, got %d", applyCalls)
	}

	v2 := "features-v2"
	result, err := o.Run(context.Background(), jobctx.New("test", false), []Target{target}, fetch, &v2, apply)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if applyCalls != 2 {
		t.Fatalf("expected re-apply on version bump, got %d total calls", applyCalls)
	}
	if result.SuccessCount != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
