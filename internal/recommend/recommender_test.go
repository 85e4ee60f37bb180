package recommend

import (
	"context"
	"testing"
)

type fakeEmbedder struct {
	vec []float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	return f.vec, nil
}

type fakeCandidateSource struct {
	candidates []Candidate
}

func (f *fakeCandidateSource) Load(ctx context.Context, budgetMin, budgetMax *int64, dim int) ([]Candidate, error) {
	return f.candidates, nil
}

func TestRecommend_VectorOnlyOrdersByVectorScore(t *testing.T) {
	r := &Recommender{
		Embedder: &fakeEmbedder{vec: []float32{1, 0}},
		Candidates: &fakeCandidateSource{candidates: []Candidate{
			{ItemID: 1, ItemName: "a", Embedding: []float32{1, 0}},
			{ItemID: 2, ItemName: "b", Embedding: []float32{0, 0}}, // zero norm: undefined cosine, dropped
			{ItemID: 3, ItemName: "c", Embedding: []float32{0.8, 0.2}},
		}},
	}
	resp, err := r.Recommend(context.Background(), Request{Mode: ModeBalanced, AlgorithmOverride: AlgorithmVectorOnly})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("want 2 items (item 2 has a zero-norm embedding), got %d", len(resp.Items))
	}
	if resp.Items[0].ItemID != 1 || resp.Items[1].ItemID != 3 {
		t.Fatalf("want order [1,3], got [%d,%d]", resp.Items[0].ItemID, resp.Items[1].ItemID)
	}
	if resp.Items[0].Rank != 1 || resp.Items[1].Rank != 2 {
		t.Fatalf("want ranks [1,2], got [%d,%d]", resp.Items[0].Rank, resp.Items[1].Rank)
	}
	if resp.Resolved.ResolvedBy != "admin_override" {
		t.Fatalf("want resolved_by=admin_override, got %q", resp.Resolved.ResolvedBy)
	}
}

func TestRecommend_InvalidModeReturnsInvalidArgumentError(t *testing.T) {
	r := &Recommender{
		Embedder:   &fakeEmbedder{vec: []float32{1, 0}},
		Candidates: &fakeCandidateSource{},
	}
	_, err := r.Recommend(context.Background(), Request{Mode: Mode("bogus")})
	if _, ok := err.(*InvalidArgumentError); !ok {
		t.Fatalf("want *InvalidArgumentError, got %T (%v)", err, err)
	}
}

func TestRecommend_AffiliateURLFallsBackToItemURL(t *testing.T) {
	r := &Recommender{
		Embedder: &fakeEmbedder{vec: []float32{1, 0}},
		Candidates: &fakeCandidateSource{candidates: []Candidate{
			{ItemID: 1, ItemURL: "https://example.test/item/1", Embedding: []float32{1, 0}},
		}},
	}
	resp, err := r.Recommend(context.Background(), Request{Mode: ModeBalanced, AlgorithmOverride: AlgorithmVectorOnly})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("want 1 item, got %d", len(resp.Items))
	}
	if resp.Items[0].AffiliateURL != "https://example.test/item/1" {
		t.Fatalf("want affiliate url to fall back to item url, got %q", resp.Items[0].AffiliateURL)
	}
}

func TestBuildContextText_EmptyRequestUsesPlaceholder(t *testing.T) {
	got := buildContextText(Request{})
	if got != contextPlaceholder {
		t.Fatalf("want placeholder %q, got %q", contextPlaceholder, got)
	}
}

func TestBuildContextText_IncludesProvidedFields(t *testing.T) {
	min := int64(1000)
	max := int64(5000)
	got := buildContextText(Request{
		Event:        "誕生日",
		Recipient:    "母",
		BudgetMinYen: &min,
		BudgetMaxYen: &max,
		LikeTags:     []string{"flowers"},
	})
	if got == contextPlaceholder {
		t.Fatal("want non-placeholder text when fields are present")
	}
}
