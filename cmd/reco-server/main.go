// Command reco-server serves the recommendation HTTP API (C13-C17).
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/nucleus/giftreco/internal/config"
	"github.com/nucleus/giftreco/internal/dbstore"
	"github.com/nucleus/giftreco/internal/embedding"
	"github.com/nucleus/giftreco/internal/recommend"
	"github.com/nucleus/giftreco/internal/recosvc"
	"github.com/nucleus/giftreco/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("reco-server: config: %v", err)
	}

	ctx := context.Background()
	store, err := dbstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("reco-server: connect relational store: %v", err)
	}
	defer store.Close()

	vectors, err := dbstore.OpenVectorStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("reco-server: connect vector store: %v", err)
	}
	defer vectors.Close()

	embedder := upstream.NewEmbedder(embedding.Get())
	loader := dbstore.NewCandidateLoader(store, vectors, cfg.OpenAIEmbeddingModel)

	if overrides, err := config.LoadModeOverrides(os.Getenv("MODES_CONFIG_PATH")); err != nil {
		log.Fatalf("reco-server: load mode overrides: %v", err)
	} else if overrides != nil {
		applyModeOverrides(overrides)
	}

	recommender := &recommend.Recommender{
		Embedder:   embedder,
		Model:      cfg.OpenAIEmbeddingModel,
		Candidates: recosvc.CandidateSource{Loader: loader},
	}

	server := recosvc.NewServer(recommender)
	addr := ":" + cfg.Port
	log.Printf("reco-server: listening on %s", addr)
	if err := http.ListenAndServe(addr, server); err != nil {
		log.Fatalf("reco-server: serve: %v", err)
	}
}

func applyModeOverrides(overrides *config.ModeOverrides) {
	for name, o := range overrides.Modes {
		p, err := recommend.ResolveMode(recommend.Mode(name), "")
		if err != nil {
			log.Printf("reco-server: skip unknown mode override %q", name)
			continue
		}
		if o.Algorithm != "" {
			p.Algorithm = recommend.Algorithm(o.Algorithm)
		}
		if o.K != 0 {
			p.K = o.K
		}
		p.WVec, p.WPop, p.WRev, p.MMRLambda = o.WVec, o.WPop, o.WRev, o.MMRLambda
		recommend.SetModeDefault(recommend.Mode(name), p)
		log.Printf("reco-server: applied mode override for %q", name)
	}
}
