package dbstore

import (
	"strconv"
	"strings"
)

// asMap returns v as a map[string]any, or nil if it isn't one.
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// asList returns v as a []any, or nil if it isn't one.
func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

// asString returns v if it is a string, or "" if it is absent, null, or any
// other type (numbers are not converted).
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asFloat coerces a canonical numeric leaf (float64, json.Number, or a
// digit-bearing string) to a float64.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case interface{ String() string }:
		f, err := strconv.ParseFloat(t.String(), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asInt coerces a canonical numeric leaf to an int64.
func asInt(v any) (int64, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// asIDList coerces a list of mixed int/digit-string ids (e.g. tagIds, which
// upstream sends as either form) into a deduplicated, order-preserving int64
// slice.
func asIDList(v any) []int64 {
	list := asList(v)
	out := make([]int64, 0, len(list))
	seen := map[int64]bool{}
	for _, item := range list {
		id, ok := asInt(item)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// field looks up key in m, returning nil if m is nil or the key is absent.
func field(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}
