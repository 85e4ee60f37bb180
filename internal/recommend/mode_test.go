package recommend

import "testing"

func TestResolveMode_Popular(t *testing.T) {
	p, err := ResolveMode(ModePopular, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Algorithm != AlgorithmVectorRankedMMR {
		t.Fatalf("want vector_ranked_mmr, got %v", p.Algorithm)
	}
	if p.NIn != 50 || p.NOut != 20 {
		t.Fatalf("want n_in=50 n_out=20, got n_in=%d n_out=%d", p.NIn, p.NOut)
	}
	if p.ResolvedBy != "mode" {
		t.Fatalf("want resolved_by=mode, got %q", p.ResolvedBy)
	}
}

func TestResolveMode_UnknownMode(t *testing.T) {
	_, err := ResolveMode(Mode("nonexistent"), "")
	if err == nil {
		t.Fatal("want error for unknown mode")
	}
	if _, ok := err.(*InvalidArgumentError); !ok {
		t.Fatalf("want *InvalidArgumentError, got %T", err)
	}
}

func TestResolveMode_AdminOverride(t *testing.T) {
	p, err := ResolveMode(ModeBalanced, AlgorithmVectorOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Algorithm != AlgorithmVectorOnly {
		t.Fatalf("want vector_only, got %v", p.Algorithm)
	}
	if p.ResolvedBy != "admin_override" {
		t.Fatalf("want resolved_by=admin_override, got %q", p.ResolvedBy)
	}
}

func TestResolveMode_UnknownOverride(t *testing.T) {
	_, err := ResolveMode(ModeDiverse, Algorithm("bogus_algorithm"))
	if err == nil {
		t.Fatal("want error for unknown algorithm override")
	}
	if _, ok := err.(*InvalidArgumentError); !ok {
		t.Fatalf("want *InvalidArgumentError, got %T", err)
	}
}

func TestResolveMode_EachModeHasDistinctWeights(t *testing.T) {
	modes := []Mode{ModePopular, ModeBalanced, ModeDiverse}
	seen := map[[4]float64]bool{}
	for _, m := range modes {
		p, err := ResolveMode(m, "")
		if err != nil {
			t.Fatalf("mode %q: %v", m, err)
		}
		key := [4]float64{p.WVec, p.WPop, p.WRev, p.MMRLambda}
		if seen[key] {
			t.Fatalf("mode %q duplicates another mode's resolved weights", m)
		}
		seen[key] = true
	}
}
