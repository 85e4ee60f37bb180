package dbstore

import "testing"

func TestPopularityScore_NilReviewCountIsNil(t *testing.T) {
	if got := popularityScore(nil, nil); got != nil {
		t.Fatalf("want nil, got %v", *got)
	}
}

func TestPopularityScore_NonPositiveReviewCountIsZero(t *testing.T) {
	avg := 4.5
	count := int64(0)
	got := popularityScore(&avg, &count)
	if got == nil || *got != 0 {
		t.Fatalf("want 0, got %v", got)
	}
}

func TestPopularityScore_NilAverageTreatedAsZero(t *testing.T) {
	count := int64(10)
	got := popularityScore(nil, &count)
	if got == nil || *got != 0 {
		t.Fatalf("want 0 (quality collapses to 0 with nil average), got %v", got)
	}
}

func TestPopularityScore_ClampsQualityAboveFive(t *testing.T) {
	avg := 9.0 // out-of-range average should clamp quality to 1
	count := int64(10)
	got := popularityScore(&avg, &count)
	clampedAvg := 5.0
	countF := int64(10)
	want := popularityScore(&clampedAvg, &countF)
	if got == nil || want == nil || *got != *want {
		t.Fatalf("want clamped quality to match avg=5 case, got %v want %v", got, want)
	}
}

func TestClamp(t *testing.T) {
	if clamp(-1, 0, 1) != 0 {
		t.Fatal("want clamp below lo to yield lo")
	}
	if clamp(2, 0, 1) != 1 {
		t.Fatal("want clamp above hi to yield hi")
	}
	if clamp(0.5, 0, 1) != 0.5 {
		t.Fatal("want value within range unchanged")
	}
}
