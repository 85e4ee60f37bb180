package dbstore

import "testing"

func TestAsFloat_HandlesFloatIntAndDigitString(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(1.5), 1.5, true},
		{int(3), 3, true},
		{int64(4), 4, true},
		{"2.5", 2.5, true},
		{"not a number", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := asFloat(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("asFloat(%v) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestAsIDList_DedupsAndPreservesOrder(t *testing.T) {
	in := []any{"3", 1, 1, "2", 3}
	got := asIDList(in)
	want := []int64{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}

func TestAsIDList_SkipsNonNumericEntries(t *testing.T) {
	in := []any{"abc", 5, nil}
	got := asIDList(in)
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("want [5], got %v", got)
	}
}

func TestField_NilMapReturnsNil(t *testing.T) {
	if field(nil, "x") != nil {
		t.Fatal("want nil for nil map")
	}
}

func TestAsMapAndAsList(t *testing.T) {
	if asMap("not a map") != nil {
		t.Fatal("want nil for non-map")
	}
	if asList("not a list") != nil {
		t.Fatal("want nil for non-list")
	}
	m := asMap(map[string]any{"a": 1})
	if m["a"] != 1 {
		t.Fatalf("want a=1, got %v", m)
	}
}
