// Package etl implements the ETL Orchestrator (C7) and Target Selectors
// (C8): the per-target fetch -> canonicalize -> hash -> dedupe -> store ->
// apply loop, run single-threaded and cooperatively over a target list.
// Grounded on internal/orchestration/manager.go's sequential per-slice loop
// and its classifyError taxonomy.
package etl

import (
	"strconv"

	"github.com/nucleus/giftreco/internal/canonical"
)

// Kind identifies which upstream entity a target fetches.
type Kind string

const (
	KindRankingGenre Kind = "ranking_genre"
	KindItem         Kind = "item"
	KindGenre        Kind = "genre"
	KindTag          Kind = "tag"
)

// Target is one unit of ETL work: one upstream fetch, canonicalize, hash,
// dedupe, store, apply cycle.
type Target struct {
	Kind     Kind   `json:"kind"`
	GenreID  int    `json:"genreId,omitempty"`
	ItemCode string `json:"itemCode,omitempty"`
	TagID    int    `json:"tagId,omitempty"`
}

// SourceID returns the natural-key component identifying this target within
// its entity, used by the staging ledger's (source, entity, source_id) key.
func (t Target) SourceID() string {
	switch t.Kind {
	case KindRankingGenre, KindGenre:
		return strconv.Itoa(t.GenreID)
	case KindItem:
		return t.ItemCode
	case KindTag:
		return strconv.Itoa(t.TagID)
	default:
		return ""
	}
}

// Entity maps a target kind to the canonicalization entity kind. Ranking
// genre targets canonicalize as "ranking" payloads.
func (t Target) Entity() canonical.Kind {
	switch t.Kind {
	case KindRankingGenre:
		return canonical.KindRanking
	case KindItem:
		return canonical.KindItem
	case KindGenre:
		return canonical.KindGenre
	case KindTag:
		return canonical.KindTag
	default:
		return canonical.KindItem
	}
}
