package recosvc

import (
	"context"

	"github.com/nucleus/giftreco/internal/dbstore"
	"github.com/nucleus/giftreco/internal/recommend"
)

// CandidateSource adapts a *dbstore.CandidateLoader to recommend.CandidateSource,
// translating dbstore's storage-shaped Candidate into the scorer's Candidate.
type CandidateSource struct {
	Loader *dbstore.CandidateLoader
}

// Load implements recommend.CandidateSource.
func (a CandidateSource) Load(ctx context.Context, budgetMin, budgetMax *int64, dim int) ([]recommend.Candidate, error) {
	rows, err := a.Loader.Load(ctx, budgetMin, budgetMax, dim)
	if err != nil {
		return nil, err
	}
	out := make([]recommend.Candidate, len(rows))
	for i, c := range rows {
		out[i] = recommend.Candidate{
			ItemID:          c.ItemID,
			ItemCode:        c.ItemCode,
			ItemName:        c.ItemName,
			ItemURL:         c.ItemURL,
			AffiliateURL:    c.AffiliateURL,
			PriceYen:        c.PriceYen,
			PopularityScore: c.PopularityScore,
			Rank:            c.Rank,
			ReviewAverage:   c.ReviewAverage,
			ReviewCount:     c.ReviewCount,
			TagIDs:          c.TagIDs,
			Embedding:       c.Embedding,
		}
	}
	return out, nil
}
