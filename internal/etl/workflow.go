package etl

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/nucleus/giftreco/internal/jobctx"
)

// Workflow and activity names registered against the Temporal task queue.
const (
	CatalogSyncWorkflow = "catalogSyncWorkflow"

	FetchRankingTargetsActivity = "FetchRankingTargets"
	RunRankingStageActivity     = "RunRankingStage"
	FetchItemTargetsActivity    = "FetchItemTargets"
	RunItemStageActivity        = "RunItemStage"
	FetchGenreTargetsActivity   = "FetchGenreTargets"
	RunGenreStageActivity       = "RunGenreStage"
	FetchTagTargetsActivity     = "FetchTagTargets"
	RunTagStageActivity         = "RunTagStage"
	DeactivateItemsActivity     = "DeactivateItems"
	BuildFeaturesActivity       = "BuildFeatures"
	BuildEmbeddingsActivity     = "BuildEmbeddings"
)

var stageActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 30 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute,
		MaximumAttempts:    3,
	},
}

// CatalogSyncInput is the input for CatalogSyncWorkflow.
type CatalogSyncInput struct {
	Env    string `json:"env"`
	DryRun bool   `json:"dryRun,omitempty"`
}

// CatalogSyncOutput summarizes every stage's RunResult.
type CatalogSyncOutput struct {
	Ranking          RunResult `json:"ranking"`
	Items            RunResult `json:"items"`
	Genres           RunResult `json:"genres"`
	Tags             RunResult `json:"tags"`
	DeactivatedCount int64     `json:"deactivatedCount"`
	FeatureErr       string    `json:"featureErr,omitempty"`
	EmbedErr         string    `json:"embedErr,omitempty"`
}

// CatalogSyncWorkflowFunc runs the full ranking -> item -> genre/tag ->
// feature -> embedding pipeline (§4.7) as a sequence of Temporal activities,
// one per stage, so a stage failure surfaces with its own retry history
// instead of unwinding the whole run.
func CatalogSyncWorkflowFunc(ctx workflow.Context, input CatalogSyncInput) (*CatalogSyncOutput, error) {
	actCtx := workflow.WithActivityOptions(ctx, stageActivityOptions)
	out := &CatalogSyncOutput{}

	var rankingTargets []Target
	if err := workflow.ExecuteActivity(actCtx, FetchRankingTargetsActivity, input).Get(ctx, &rankingTargets); err != nil {
		return nil, err
	}
	if err := workflow.ExecuteActivity(actCtx, RunRankingStageActivity, input, rankingTargets).Get(ctx, &out.Ranking); err != nil {
		return nil, err
	}

	var itemTargets []Target
	if err := workflow.ExecuteActivity(actCtx, FetchItemTargetsActivity, input).Get(ctx, &itemTargets); err != nil {
		return nil, err
	}
	if err := workflow.ExecuteActivity(actCtx, RunItemStageActivity, input, itemTargets).Get(ctx, &out.Items); err != nil {
		return nil, err
	}

	var genreTargets []Target
	if err := workflow.ExecuteActivity(actCtx, FetchGenreTargetsActivity, input).Get(ctx, &genreTargets); err != nil {
		return nil, err
	}
	if err := workflow.ExecuteActivity(actCtx, RunGenreStageActivity, input, genreTargets).Get(ctx, &out.Genres); err != nil {
		return nil, err
	}

	var tagTargets []Target
	if err := workflow.ExecuteActivity(actCtx, FetchTagTargetsActivity, input).Get(ctx, &tagTargets); err != nil {
		return nil, err
	}
	if err := workflow.ExecuteActivity(actCtx, RunTagStageActivity, input, tagTargets).Get(ctx, &out.Tags); err != nil {
		return nil, err
	}

	var deactivated int64
	if err := workflow.ExecuteActivity(actCtx, DeactivateItemsActivity, input).Get(ctx, &deactivated); err != nil {
		return nil, err
	}
	out.DeactivatedCount = deactivated

	var featureErr string
	if err := workflow.ExecuteActivity(actCtx, BuildFeaturesActivity, input).Get(ctx, &featureErr); err != nil {
		return nil, err
	}
	out.FeatureErr = featureErr

	var embedErr string
	if err := workflow.ExecuteActivity(actCtx, BuildEmbeddingsActivity, input).Get(ctx, &embedErr); err != nil {
		return nil, err
	}
	out.EmbedErr = embedErr

	return out, nil
}

// Stage bundles the dependencies a stage activity needs to build a
// jobctx.Context and drive an Orchestrator run.
type Stage struct {
	Orchestrator *Orchestrator
	Fetch        Fetcher
	Apply        Applier
}

// Run builds a fresh job context from input and executes one orchestrator
// pass over targets. Exported so activity wrappers in cmd/etl-worker can
// register it per entity kind without duplicating the jobctx plumbing.
func (s *Stage) Run(ctx context.Context, input CatalogSyncInput, targets []Target) (RunResult, error) {
	jctx := jobctx.New(input.Env, input.DryRun)
	return s.Orchestrator.Run(ctx, jctx, targets, s.Fetch, nil, s.Apply)
}
