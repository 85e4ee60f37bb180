// Command etl-worker runs a Temporal worker for CatalogSyncWorkflow,
// executing one stage activity at a time so a stage's failures get their
// own retry history without unwinding the whole sync (§4.7).
package main

import (
	"context"
	"log"
	"os"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/nucleus/giftreco/internal/config"
	"github.com/nucleus/giftreco/internal/dbstore"
	"github.com/nucleus/giftreco/internal/embedding"
	"github.com/nucleus/giftreco/internal/etl"
	"github.com/nucleus/giftreco/internal/httpclient"
	"github.com/nucleus/giftreco/internal/jobctx"
	"github.com/nucleus/giftreco/internal/objectstore"
	"github.com/nucleus/giftreco/internal/upstream"
)

const (
	defaultTaskQueue    = "giftreco-catalog-sync"
	defaultTemporalAddr = "127.0.0.1:7233"
	defaultNamespace    = "default"
)

// activities bundles every dependency a stage/feature/embedding activity
// needs, registered against the string names etl.workflow.go declares.
type activities struct {
	ranking      *etl.Stage
	item         *etl.Stage
	genre        *etl.Stage
	tag          *etl.Stage
	features     *dbstore.FeatureBuilder
	sources      *dbstore.SourceBuilder
	embedding    *dbstore.EmbeddingWriter
	deactivation *dbstore.DeactivationJob
	selectors    *dbstore.Selectors
}

func (a *activities) fetchRankingTargets(ctx context.Context, input etl.CatalogSyncInput) ([]etl.Target, error) {
	return a.selectors.RankingTargets(ctx, jobctx.New(input.Env, input.DryRun))
}

func (a *activities) runRankingStage(ctx context.Context, input etl.CatalogSyncInput, targets []etl.Target) (etl.RunResult, error) {
	return a.ranking.Run(ctx, input, targets)
}

func (a *activities) fetchItemTargets(ctx context.Context, input etl.CatalogSyncInput) ([]etl.Target, error) {
	return a.selectors.ItemTargets(ctx, jobctx.New(input.Env, input.DryRun))
}

func (a *activities) runItemStage(ctx context.Context, input etl.CatalogSyncInput, targets []etl.Target) (etl.RunResult, error) {
	return a.item.Run(ctx, input, targets)
}

func (a *activities) fetchGenreTargets(ctx context.Context, input etl.CatalogSyncInput) ([]etl.Target, error) {
	return a.selectors.GenreTargets(ctx, jobctx.New(input.Env, input.DryRun))
}

func (a *activities) runGenreStage(ctx context.Context, input etl.CatalogSyncInput, targets []etl.Target) (etl.RunResult, error) {
	return a.genre.Run(ctx, input, targets)
}

func (a *activities) fetchTagTargets(ctx context.Context, input etl.CatalogSyncInput) ([]etl.Target, error) {
	return a.selectors.TagTargets(ctx, jobctx.New(input.Env, input.DryRun))
}

func (a *activities) runTagStage(ctx context.Context, input etl.CatalogSyncInput, targets []etl.Target) (etl.RunResult, error) {
	return a.tag.Run(ctx, input, targets)
}

// deactivateItems runs JOB-A-01: reconcile apl.items.is_active against each
// item's latest market snapshot availability before features/embeddings are
// rebuilt, so delisted items drop out of both.
func (a *activities) deactivateItems(ctx context.Context, input etl.CatalogSyncInput) (int64, error) {
	if input.DryRun {
		return 0, nil
	}
	return a.deactivation.Run(ctx)
}

func (a *activities) buildFeatures(ctx context.Context, input etl.CatalogSyncInput) (string, error) {
	jctx := jobctx.New(input.Env, input.DryRun)
	if _, err := a.features.Run(ctx, jctx.TodayStart()); err != nil {
		return err.Error(), nil
	}
	return "", nil
}

func (a *activities) buildEmbeddings(ctx context.Context, input etl.CatalogSyncInput) (string, error) {
	if _, err := a.sources.Run(ctx); err != nil {
		return err.Error(), nil
	}
	if _, err := a.embedding.Run(ctx); err != nil {
		return err.Error(), nil
	}
	return "", nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("etl-worker: config: %v", err)
	}

	ctx := context.Background()
	store, err := dbstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("etl-worker: connect relational store: %v", err)
	}
	defer store.Close()

	vectors, err := dbstore.OpenVectorStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("etl-worker: connect vector store: %v", err)
	}
	defer vectors.Close()

	objStore := objectstore.NewLocalStore(os.Getenv("OBJECTSTORE_LOCAL_DIR"))

	httpCfg := httpclient.DefaultConfig()
	httpCfg.BaseURL = "https://app.rakuten.co.jp/services/api"
	commerce := upstream.NewCommerceClient(httpclient.NewClient(httpCfg), upstream.CommerceConfig{
		AppID:       cfg.RakutenAppID,
		AffiliateID: cfg.RakutenAffiliateID,
	})
	embedder := upstream.NewEmbedder(embedding.Get())

	ledger := dbstore.NewLedger(store)
	selectors := dbstore.NewSelectors(store, []int{0})
	appliers := dbstore.NewAppliers(store)
	orchestrator := &etl.Orchestrator{Ledger: ledger, Store: objStore, Bucket: "local"}

	acts := &activities{
		ranking: &etl.Stage{Orchestrator: orchestrator, Apply: appliers.ApplyRanking,
			Fetch: func(ctx context.Context, t etl.Target) (any, error) { return commerce.FetchRanking(ctx, t.GenreID) }},
		item: &etl.Stage{Orchestrator: orchestrator, Apply: appliers.ApplyItem,
			Fetch: func(ctx context.Context, t etl.Target) (any, error) { return commerce.FetchItem(ctx, t.ItemCode) }},
		genre: &etl.Stage{Orchestrator: orchestrator, Apply: appliers.ApplyGenre,
			Fetch: func(ctx context.Context, t etl.Target) (any, error) { return commerce.FetchGenre(ctx, t.GenreID) }},
		tag: &etl.Stage{Orchestrator: orchestrator, Apply: appliers.ApplyTag,
			Fetch: func(ctx context.Context, t etl.Target) (any, error) { return commerce.FetchTag(ctx, t.TagID) }},
		features:     dbstore.NewFeatureBuilder(store, "features-v1"),
		sources:      dbstore.NewSourceBuilder(store),
		embedding:    dbstore.NewEmbeddingWriter(vectors, embedder, cfg.OpenAIEmbeddingModel),
		deactivation: dbstore.NewDeactivationJob(store),
		selectors:    selectors,
	}

	temporalAddr := getEnv("TEMPORAL_ADDRESS", defaultTemporalAddr)
	namespace := getEnv("TEMPORAL_NAMESPACE", defaultNamespace)
	taskQueue := getEnv("GIFTRECO_TASK_QUEUE", defaultTaskQueue)

	c, err := client.Dial(client.Options{HostPort: temporalAddr, Namespace: namespace})
	if err != nil {
		log.Fatalf("etl-worker: create temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(etl.CatalogSyncWorkflowFunc, workflow.RegisterOptions{Name: etl.CatalogSyncWorkflow})

	w.RegisterActivityWithOptions(acts.fetchRankingTargets, activity.RegisterOptions{Name: etl.FetchRankingTargetsActivity})
	w.RegisterActivityWithOptions(acts.runRankingStage, activity.RegisterOptions{Name: etl.RunRankingStageActivity})
	w.RegisterActivityWithOptions(acts.fetchItemTargets, activity.RegisterOptions{Name: etl.FetchItemTargetsActivity})
	w.RegisterActivityWithOptions(acts.runItemStage, activity.RegisterOptions{Name: etl.RunItemStageActivity})
	w.RegisterActivityWithOptions(acts.fetchGenreTargets, activity.RegisterOptions{Name: etl.FetchGenreTargetsActivity})
	w.RegisterActivityWithOptions(acts.runGenreStage, activity.RegisterOptions{Name: etl.RunGenreStageActivity})
	w.RegisterActivityWithOptions(acts.fetchTagTargets, activity.RegisterOptions{Name: etl.FetchTagTargetsActivity})
	w.RegisterActivityWithOptions(acts.runTagStage, activity.RegisterOptions{Name: etl.RunTagStageActivity})
	w.RegisterActivityWithOptions(acts.deactivateItems, activity.RegisterOptions{Name: etl.DeactivateItemsActivity})
	w.RegisterActivityWithOptions(acts.buildFeatures, activity.RegisterOptions{Name: etl.BuildFeaturesActivity})
	w.RegisterActivityWithOptions(acts.buildEmbeddings, activity.RegisterOptions{Name: etl.BuildEmbeddingsActivity})

	log.Printf("etl-worker: listening address=%s namespace=%s queue=%s", temporalAddr, namespace, taskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("etl-worker: run: %v", err)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
