package recommend

import "testing"

func ptrF(v float64) *float64 { return &v }
func ptrI(v int64) *int64     { return &v }
func ptrI32(v int32) *int32   { return &v }

func TestCosine_IdenticalVectors(t *testing.T) {
	v := []float32{1, 0, 0}
	got, ok := cosine(v, v)
	if !ok {
		t.Fatal("expected ok")
	}
	if got < 0.999 || got > 1.001 {
		t.Fatalf("want ~1.0, got %v", got)
	}
}

func TestCosine_ZeroNormUndefined(t *testing.T) {
	_, ok := cosine([]float32{0, 0}, []float32{1, 1})
	if ok {
		t.Fatal("want cosine undefined for zero-norm vector")
	}
}

func TestCosine_LengthMismatchUndefined(t *testing.T) {
	_, ok := cosine([]float32{1, 0}, []float32{1, 0, 0})
	if ok {
		t.Fatal("want cosine undefined for mismatched lengths")
	}
}

func TestScore_DropsUndefinedCosineCandidates(t *testing.T) {
	candidates := []Candidate{
		{ItemID: 1, Embedding: []float32{0, 0}},
		{ItemID: 2, Embedding: []float32{1, 0}},
	}
	p := Params{WVec: 1}
	scored := Score([]float32{1, 0}, candidates, p)
	if len(scored) != 1 {
		t.Fatalf("want 1 scored candidate, got %d", len(scored))
	}
	if scored[0].Candidate.ItemID != 2 {
		t.Fatalf("want item 2 to survive, got %d", scored[0].Candidate.ItemID)
	}
}

func TestNormalizeComponent_MaxEqualsMinYieldsZero(t *testing.T) {
	scored := []Scored{{VecRaw: 0.5}, {VecRaw: 0.5}, {VecRaw: 0.5}}
	normalizeComponent(scored, func(s *Scored) *float64 { return &s.VecRaw }, func(s *Scored) *float64 { return &s.Vec })
	for i, s := range scored {
		if s.Vec != 0 {
			t.Fatalf("index %d: want 0 when max==min, got %v", i, s.Vec)
		}
	}
}

func TestNormalizeComponent_MinMaxSpread(t *testing.T) {
	scored := []Scored{{VecRaw: 0}, {VecRaw: 5}, {VecRaw: 10}}
	normalizeComponent(scored, func(s *Scored) *float64 { return &s.VecRaw }, func(s *Scored) *float64 { return &s.Vec })
	if scored[0].Vec != 0 || scored[2].Vec != 1 {
		t.Fatalf("want endpoints 0 and 1, got %v and %v", scored[0].Vec, scored[2].Vec)
	}
	if scored[1].Vec != 0.5 {
		t.Fatalf("want midpoint 0.5, got %v", scored[1].Vec)
	}
}

func TestPopularityRaw_PrefersPopularityScoreOverRankFallback(t *testing.T) {
	c := Candidate{PopularityScore: ptrF(0.8), Rank: ptrI32(1)}
	if got := popularityRaw(c); got != 0.8 {
		t.Fatalf("want 0.8, got %v", got)
	}
}

func TestPopularityRaw_FallsBackToRank(t *testing.T) {
	c := Candidate{Rank: ptrI32(1)}
	got := popularityRaw(c)
	want := 0.5
	if got < want-0.0001 || got > want+0.0001 {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestPopularityRaw_ZeroWhenNeitherPresent(t *testing.T) {
	if got := popularityRaw(Candidate{}); got != 0 {
		t.Fatalf("want 0, got %v", got)
	}
}

func TestReviewRaw_ZeroMaxCollapsesToZero(t *testing.T) {
	c := Candidate{ReviewAverage: ptrF(5), ReviewCount: ptrI(100)}
	if got := reviewRaw(c, 0); got != 0 {
		t.Fatalf("want 0, got %v", got)
	}
}

func TestReviewRaw_HighestQualityAndCountYieldsOne(t *testing.T) {
	c := Candidate{ReviewAverage: ptrF(5), ReviewCount: ptrI(100)}
	got := reviewRaw(c, 100)
	if got < 0.999 || got > 1.001 {
		t.Fatalf("want ~1.0, got %v", got)
	}
}

func TestTopKByVector_TruncatesAndOrdersDescending(t *testing.T) {
	candidates := []Candidate{
		{ItemID: 1, Embedding: []float32{1, 0}},
		{ItemID: 2, Embedding: []float32{0, 1}},
		{ItemID: 3, Embedding: []float32{0.9, 0.1}},
	}
	top := TopKByVector([]float32{1, 0}, candidates, 2)
	if len(top) != 2 {
		t.Fatalf("want 2 candidates, got %d", len(top))
	}
	if top[0].ItemID != 1 || top[1].ItemID != 3 {
		t.Fatalf("want order [1,3], got [%d,%d]", top[0].ItemID, top[1].ItemID)
	}
}
