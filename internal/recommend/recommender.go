package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// contextPlaceholder stands in for an entirely empty request context so the
// embedding provider always receives nonempty text (§4.15).
const contextPlaceholder = "ギフト"

// Request is one recommendation request's free-form fields (§4.15, §4.17).
type Request struct {
	Mode              Mode
	AlgorithmOverride Algorithm
	Event             string
	Recipient         string
	BudgetMinYen      *int64
	BudgetMaxYen      *int64
	LikeTags          []string
	DislikeTags       []string
	NGTags            []string
}

// Reason explains one item's placement (§4.17).
type Reason struct {
	Type   string `json:"type"`
	Scores Scores `json:"scores"`
}

// Item is one ranked recommendation.
type Item struct {
	ItemID       int64   `json:"itemId"`
	Rank         int     `json:"rank"`
	Score        float64 `json:"score"`
	VectorScore  float64 `json:"vectorScore"`
	RerankScore  float64 `json:"rerankScore"`
	Reason       Reason  `json:"reason"`
	ItemName     string  `json:"itemName"`
	ItemURL      string  `json:"itemUrl"`
	AffiliateURL string  `json:"affiliateUrl"`
	PriceYen     int64   `json:"priceYen"`
}

// Response is C17's full output.
type Response struct {
	RequestID   string    `json:"requestId"`
	Context     string    `json:"context"`
	Resolved    Params    `json:"resolved"`
	Items       []Item    `json:"items"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// ContextEmbedder embeds request context text into a vector; satisfied by
// *upstream.Embedder.
type ContextEmbedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// CandidateSource loads the scoreable candidate pool (C14), already joined
// to embeddings of the given dimension.
type CandidateSource interface {
	Load(ctx context.Context, budgetMin, budgetMax *int64, dim int) ([]Candidate, error)
}

// Recommender composes C13-C16 into the request/response cycle (C17).
type Recommender struct {
	Embedder   ContextEmbedder
	Model      string
	Candidates CandidateSource
}

// Recommend resolves mode, embeds the request context, loads and scores
// candidates, diversifies if the algorithm calls for it, and returns the
// ranked response.
func (r *Recommender) Recommend(ctx context.Context, req Request) (*Response, error) {
	params, err := ResolveMode(req.Mode, req.AlgorithmOverride)
	if err != nil {
		return nil, err
	}

	contextText := buildContextText(req)
	contextVec, err := r.Embedder.Embed(ctx, contextText, r.Model)
	if err != nil {
		return nil, fmt.Errorf("recommend: embed context: %w", err)
	}

	candidates, err := r.Candidates.Load(ctx, req.BudgetMinYen, req.BudgetMaxYen, len(contextVec))
	if err != nil {
		return nil, fmt.Errorf("recommend: load candidates: %w", err)
	}

	top := TopKByVector(contextVec, candidates, params.K)
	scored := Score(contextVec, top, params)

	var final []Scored
	switch params.Algorithm {
	case AlgorithmVectorOnly:
		ranked := RankByVec(scored)
		final = truncate(ranked, params.NOut)
	case AlgorithmVectorRanked:
		ranked := RankByScore(scored)
		final = truncate(ranked, params.NOut)
	default: // AlgorithmVectorRankedMMR
		ranked := RankByScore(scored)
		pool := truncate(ranked, params.NIn)
		final = SelectMMR(pool, params.NOut, params.MMRLambda)
	}

	items := make([]Item, len(final))
	for i, s := range final {
		affiliate := s.Candidate.AffiliateURL
		if affiliate == "" {
			affiliate = s.Candidate.ItemURL
		}
		items[i] = Item{
			ItemID:       s.Candidate.ItemID,
			Rank:         i + 1,
			Score:        s.Score,
			VectorScore:  s.Vec,
			RerankScore:  s.Score,
			Reason:       Reason{Type: "scoring", Scores: Scores{Vec: s.Vec, Pop: s.Pop, Rev: s.Rev}},
			ItemName:     s.Candidate.ItemName,
			ItemURL:      s.Candidate.ItemURL,
			AffiliateURL: affiliate,
			PriceYen:     s.Candidate.PriceYen,
		}
	}

	return &Response{
		RequestID:   "req-" + uuid.New().String(),
		Context:     contextText,
		Resolved:    params,
		Items:       items,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func truncate(s []Scored, n int) []Scored {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// buildContextText renders a compact summary of the request fields used as
// the embedding provider's input (§4.15); an entirely empty request maps to
// contextPlaceholder.
func buildContextText(req Request) string {
	var parts []string
	if req.Event != "" {
		parts = append(parts, "イベント: "+req.Event)
	}
	if req.Recipient != "" {
		parts = append(parts, "贈る相手: "+req.Recipient)
	}
	if req.BudgetMinYen != nil || req.BudgetMaxYen != nil {
		parts = append(parts, "予算: "+budgetText(req.BudgetMinYen, req.BudgetMaxYen))
	}
	if len(req.LikeTags) > 0 {
		parts = append(parts, "好み: "+strings.Join(req.LikeTags, ", "))
	}
	if len(req.DislikeTags) > 0 {
		parts = append(parts, "苦手: "+strings.Join(req.DislikeTags, ", "))
	}
	if len(req.NGTags) > 0 {
		parts = append(parts, "NG: "+strings.Join(req.NGTags, ", "))
	}
	if len(parts) == 0 {
		return contextPlaceholder
	}
	return strings.Join(parts, "\n")
}

func budgetText(min, max *int64) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("%d円〜%d円", *min, *max)
	case min != nil:
		return fmt.Sprintf("%d円以上", *min)
	case max != nil:
		return fmt.Sprintf("%d円以下", *max)
	default:
		return ""
	}
}
