package recommend

import "sort"

// SelectMMR runs Maximal Marginal Relevance selection over pool (already
// ranked by Score descending by the caller), returning up to nOut items
// (C16).
//
// Each step after the first picks the candidate maximizing
// lambda*score - (1-lambda)*max_sim, where max_sim is the greatest tag-set
// Jaccard similarity against any already-selected candidate.
func SelectMMR(pool []Scored, nOut int, lambda float64) []Scored {
	if len(pool) == 0 || nOut <= 0 {
		return nil
	}
	remaining := append([]Scored(nil), pool...)
	selected := make([]Scored, 0, nOut)

	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(selected) < nOut && len(remaining) > 0 {
		bestIdx := -1
		bestValue := 0.0
		for i, cand := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				sim := jaccard(cand.Candidate.tagSet(), s.Candidate.tagSet())
				if sim > maxSim {
					maxSim = sim
				}
			}
			value := lambda*cand.Score - (1-lambda)*maxSim
			if bestIdx == -1 || value > bestValue {
				bestIdx = i
				bestValue = value
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// jaccard returns |a ∩ b| / |a ∪ b|, defined as 0 when both sets are empty
// or disjoint.
func jaccard(a, b map[int64]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for id := range a {
		if b[id] {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// RankByScore sorts scored candidates by Score descending, stable for
// deterministic tie-breaking by input order.
func RankByScore(scored []Scored) []Scored {
	out := append([]Scored(nil), scored...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// RankByVec sorts scored candidates by their normalized vector score
// descending (vector_only algorithm, §4.16).
func RankByVec(scored []Scored) []Scored {
	out := append([]Scored(nil), scored...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Vec > out[j].Vec })
	return out
}
