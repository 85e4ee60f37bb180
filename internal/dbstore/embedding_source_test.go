package dbstore

import (
	"strings"
	"testing"
)

func TestNormalizeField_StripsTagsAndCollapsesWhitespace(t *testing.T) {
	got := normalizeField("<b>hello</b>   world\r\n\r\n  next  line  ")
	want := "hello world\nnext line"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

func TestNormalizeField_DropsBlankLines(t *testing.T) {
	got := normalizeField("a\n\n\nb")
	if got != "a\nb" {
		t.Fatalf("want %q, got %q", "a\nb", got)
	}
}

func TestTruncateRunes_UnderLimitUnchanged(t *testing.T) {
	if got := truncateRunes("hello", 10); got != "hello" {
		t.Fatalf("want unchanged, got %q", got)
	}
}

func TestTruncateRunes_OverLimitTruncatesByRuneCount(t *testing.T) {
	s := strings.Repeat("あ", 2005)
	got := truncateRunes(s, 2000)
	if len([]rune(got)) != 2000 {
		t.Fatalf("want 2000 runes, got %d", len([]rune(got)))
	}
}

func TestBuildSourceText_FullItem(t *testing.T) {
	price := int64(1500)
	it := sourceItem{
		itemName:  "陶器のマグカップ",
		catchcopy: "毎日の一杯に",
		caption:   "手作りの温かみ",
		genreName: "キッチン用品",
		tags:      []string{"ギフト", "陶器"},
		priceYen:  &price,
	}
	got := buildSourceText(it)
	if !strings.Contains(got, "商品名: 陶器のマグカップ") {
		t.Fatalf("missing item name header: %q", got)
	}
	if !strings.Contains(got, "ジャンル: キッチン用品") {
		t.Fatalf("missing genre detail: %q", got)
	}
	if !strings.Contains(got, "タグ: ギフト, 陶器") {
		t.Fatalf("missing tag list: %q", got)
	}
	if !strings.Contains(got, "価格: 1500円") {
		t.Fatalf("missing price: %q", got)
	}
	if !strings.Contains(got, "\n\n") {
		t.Fatalf("want a blank separator line between header and detail blocks: %q", got)
	}
}

func TestBuildSourceText_OnlyHeaderNoSeparator(t *testing.T) {
	it := sourceItem{itemName: "単品"}
	got := buildSourceText(it)
	if strings.Contains(got, "\n\n") {
		t.Fatalf("want no separator when detail block is empty: %q", got)
	}
	if got != "商品名: 単品" {
		t.Fatalf("want just the header line, got %q", got)
	}
}

func TestBuildSourceText_EmptyItemYieldsEmptyString(t *testing.T) {
	if got := buildSourceText(sourceItem{}); got != "" {
		t.Fatalf("want empty string, got %q", got)
	}
}

func TestNormalizedTagList_CapsAtThirty(t *testing.T) {
	tags := make([]string, 40)
	for i := range tags {
		tags[i] = "tag"
	}
	got := normalizedTagList(tags)
	if n := strings.Count(got, "tag"); n != 30 {
		t.Fatalf("want 30 tags, got %d", n)
	}
}

func TestSourceHash_DeterministicAndSensitiveToContent(t *testing.T) {
	a := sourceHash("hello")
	b := sourceHash("hello")
	c := sourceHash("world")
	if a != b {
		t.Fatal("want identical hash for identical input")
	}
	if a == c {
		t.Fatal("want different hash for different input")
	}
}
