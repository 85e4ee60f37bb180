package recommend

import (
	"math"
	"sort"
)

// TopKByVector ranks candidates by raw cosine similarity to contextVec
// descending and truncates to k (§4.15's pre-scoring filter). Candidates
// with an undefined vector score are dropped.
func TopKByVector(contextVec []float32, candidates []Candidate, k int) []Candidate {
	type ranked struct {
		c   Candidate
		vec float64
	}
	rs := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		if vec, ok := cosine(contextVec, c.Embedding); ok {
			rs = append(rs, ranked{c: c, vec: vec})
		}
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].vec > rs[j].vec })
	if k > 0 && len(rs) > k {
		rs = rs[:k]
	}
	out := make([]Candidate, len(rs))
	for i, r := range rs {
		out[i] = r.c
	}
	return out
}

// Scores is the per-candidate component breakdown carried into the
// response's reason.scores (§4.17).
type Scores struct {
	Vec float64
	Pop float64
	Rev float64
}

// Scored pairs a Candidate with its raw and normalized component scores and
// final blended score.
type Scored struct {
	Candidate  Candidate
	VecRaw     float64
	PopRaw     float64
	RevRaw     float64
	Vec        float64
	Pop        float64
	Rev        float64
	Score      float64
}

// Score computes per-candidate raw scores, min-max normalizes each
// component over the candidate set, and blends them with the resolved
// weights (C15). Candidates with no defined vector score (cosine
// undefined, e.g. zero-norm vectors) are dropped.
func Score(contextVec []float32, candidates []Candidate, p Params) []Scored {
	maxReviewCount := int64(0)
	for _, c := range candidates {
		if c.ReviewCount != nil && *c.ReviewCount > maxReviewCount {
			maxReviewCount = *c.ReviewCount
		}
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		vecRaw, ok := cosine(contextVec, c.Embedding)
		if !ok {
			continue
		}
		popRaw := popularityRaw(c)
		revRaw := reviewRaw(c, maxReviewCount)
		scored = append(scored, Scored{Candidate: c, VecRaw: vecRaw, PopRaw: popRaw, RevRaw: revRaw})
	}

	normalizeComponent(scored, func(s *Scored) *float64 { return &s.VecRaw }, func(s *Scored) *float64 { return &s.Vec })
	normalizeComponent(scored, func(s *Scored) *float64 { return &s.PopRaw }, func(s *Scored) *float64 { return &s.Pop })
	normalizeComponent(scored, func(s *Scored) *float64 { return &s.RevRaw }, func(s *Scored) *float64 { return &s.Rev })

	for i := range scored {
		scored[i].Score = p.WVec*scored[i].Vec + p.WPop*scored[i].Pop + p.WRev*scored[i].Rev
	}
	return scored
}

// popularityRaw implements §4.15's popularity fallback: present
// popularity_score wins; else 1/(rank+1) if rank is present; else 0.
func popularityRaw(c Candidate) float64 {
	if c.PopularityScore != nil {
		return *c.PopularityScore
	}
	if c.Rank != nil {
		return 1 / (float64(*c.Rank) + 1)
	}
	return 0
}

// reviewRaw implements §4.15's review-quality score; a zero max review
// count collapses the denominator to 0.
func reviewRaw(c Candidate, maxReviewCount int64) float64 {
	if maxReviewCount <= 0 {
		return 0
	}
	reviewCount := int64(0)
	if c.ReviewCount != nil {
		reviewCount = *c.ReviewCount
	}
	avg := 0.0
	if c.ReviewAverage != nil {
		avg = *c.ReviewAverage
	}
	quality := clampF(avg/5, 0, 1)
	return quality * math.Log(1+float64(reviewCount)) / math.Log(1+float64(maxReviewCount))
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeComponent min-max normalizes one raw-score field across scored in
// place; if max == min, every value maps to 0 (§4.15).
func normalizeComponent(scored []Scored, raw func(*Scored) *float64, dst func(*Scored) *float64) {
	if len(scored) == 0 {
		return
	}
	min, max := *raw(&scored[0]), *raw(&scored[0])
	for i := range scored {
		v := *raw(&scored[i])
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	for i := range scored {
		d := dst(&scored[i])
		if max == min {
			*d = 0
			continue
		}
		*d = (*raw(&scored[i]) - min) / (max - min)
	}
}

// cosine returns the cosine similarity of a and b, or false if either has a
// zero norm or they differ in length.
func cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
