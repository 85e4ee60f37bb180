package recommend

import "testing"

func TestJaccard_DisjointSetsIsZero(t *testing.T) {
	a := map[int64]bool{1: true, 2: true}
	b := map[int64]bool{3: true, 4: true}
	if got := jaccard(a, b); got != 0 {
		t.Fatalf("want 0, got %v", got)
	}
}

func TestJaccard_EmptySetIsZero(t *testing.T) {
	if got := jaccard(map[int64]bool{}, map[int64]bool{1: true}); got != 0 {
		t.Fatalf("want 0, got %v", got)
	}
}

func TestJaccard_IdenticalSetsIsOne(t *testing.T) {
	a := map[int64]bool{1: true, 2: true}
	if got := jaccard(a, a); got != 1 {
		t.Fatalf("want 1, got %v", got)
	}
}

func TestJaccard_PartialOverlap(t *testing.T) {
	a := map[int64]bool{1: true, 2: true}
	b := map[int64]bool{2: true, 3: true}
	got := jaccard(a, b)
	if got != 1.0/3.0 {
		t.Fatalf("want 1/3, got %v", got)
	}
}

func candWithTags(id int64, score float64, tags ...int64) Scored {
	return Scored{Candidate: Candidate{ItemID: id, TagIDs: tags}, Score: score}
}

func TestSelectMMR_LambdaOneIgnoresSimilarity(t *testing.T) {
	pool := []Scored{
		candWithTags(1, 0.9, 1, 2),
		candWithTags(2, 0.8, 1, 2),
		candWithTags(3, 0.1, 9),
	}
	selected := SelectMMR(pool, 3, 1.0)
	if len(selected) != 3 {
		t.Fatalf("want 3 selected, got %d", len(selected))
	}
	if selected[0].Candidate.ItemID != 1 || selected[1].Candidate.ItemID != 2 || selected[2].Candidate.ItemID != 3 {
		t.Fatalf("want pure score order [1,2,3], got [%d,%d,%d]",
			selected[0].Candidate.ItemID, selected[1].Candidate.ItemID, selected[2].Candidate.ItemID)
	}
}

func TestSelectMMR_LambdaZeroPrefersDissimilar(t *testing.T) {
	pool := []Scored{
		candWithTags(1, 0.9, 1, 2),
		candWithTags(2, 0.85, 1, 2),
		candWithTags(3, 0.1, 9, 10),
	}
	selected := SelectMMR(pool, 2, 0.0)
	if len(selected) != 2 {
		t.Fatalf("want 2 selected, got %d", len(selected))
	}
	if selected[0].Candidate.ItemID != 1 {
		t.Fatalf("want first pick to be the top-scored seed, got %d", selected[0].Candidate.ItemID)
	}
	if selected[1].Candidate.ItemID != 3 {
		t.Fatalf("want second pick to be the dissimilar candidate, got %d", selected[1].Candidate.ItemID)
	}
}

func TestSelectMMR_NOutCapsSelection(t *testing.T) {
	pool := []Scored{candWithTags(1, 0.9), candWithTags(2, 0.8), candWithTags(3, 0.7)}
	selected := SelectMMR(pool, 1, 0.5)
	if len(selected) != 1 {
		t.Fatalf("want 1 selected, got %d", len(selected))
	}
}

func TestSelectMMR_EmptyPool(t *testing.T) {
	if got := SelectMMR(nil, 5, 0.5); got != nil {
		t.Fatalf("want nil, got %v", got)
	}
}

func TestRankByScore_SortsDescending(t *testing.T) {
	scored := []Scored{{Score: 0.1}, {Score: 0.9}, {Score: 0.5}}
	ranked := RankByScore(scored)
	if ranked[0].Score != 0.9 || ranked[1].Score != 0.5 || ranked[2].Score != 0.1 {
		t.Fatalf("want descending order, got %v", ranked)
	}
}

func TestRankByVec_SortsDescending(t *testing.T) {
	scored := []Scored{{Vec: 0.2}, {Vec: 0.8}, {Vec: 0.5}}
	ranked := RankByVec(scored)
	if ranked[0].Vec != 0.8 || ranked[1].Vec != 0.5 || ranked[2].Vec != 0.2 {
		t.Fatalf("want descending order, got %v", ranked)
	}
}
