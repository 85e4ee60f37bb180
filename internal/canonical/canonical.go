// Package canonical implements the deterministic canonicalization (C1) and
// content hashing (C2) of upstream payloads. Canonicalization produces a
// byte-identical-after-serialization tree for semantically identical inputs:
// maps sorted by key, strings trimmed/empty->null/CRLF-unified, designated
// per-entity arrays sorted, and volatile keys elided.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Kind identifies which entity's canonicalization rules apply.
type Kind string

const (
	KindItem    Kind = "item"
	KindRanking Kind = "ranking"
	KindGenre   Kind = "genre"
	KindTag     Kind = "tag"
)

// excludedKeys never survive canonicalization: they vary run-to-run without
// reflecting a semantic change in the upstream payload.
var excludedKeys = map[string]bool{
	"fetched_at":       true,
	"requested_at":     true,
	"request_id":       true,
	"response_headers": true,
	"http_status":      true,
	"api_version":      true,
}

// sortSets lists, per entity kind, the map keys whose array values must be
// sorted after element-wise normalization.
var sortSets = map[Kind]map[string]bool{
	KindItem: {
		"smallImageUrls":  true,
		"mediumImageUrls": true,
		"tagIds":          true,
	},
}

// Canonicalize walks v depth-first and returns the canonical tree. v is
// expected to be the result of decoding JSON into `any` (maps, slices,
// strings, json.Number/float64, bool, nil) — e.g. via a json.Decoder with
// UseNumber() so sort order over numeric arrays matches the original text.
func Canonicalize(kind Kind, v any) any {
	return canonicalizeNode(kind, "", v)
}

func canonicalizeNode(kind Kind, key string, v any) any {
	switch t := v.(type) {
	case map[string]any:
		return canonicalizeMap(kind, t)
	case []any:
		return canonicalizeList(kind, key, t)
	case string:
		return canonicalizeString(t)
	default:
		return v
	}
}

func canonicalizeMap(kind Kind, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if excludedKeys[k] {
			continue
		}
		out[k] = canonicalizeNode(kind, k, v)
	}
	return out
}

func canonicalizeList(kind Kind, key string, list []any) []any {
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = canonicalizeNode(kind, "", v)
	}
	if sortSets[kind][key] {
		sort.SliceStable(out, func(i, j int) bool {
			return sortKeyOf(out[i]) < sortKeyOf(out[j])
		})
	}
	return out
}

// canonicalizeString normalizes line endings, trims, and maps empty/
// whitespace-only strings to nil (which becomes JSON null).
func canonicalizeString(s string) any {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

// sortKeyOf implements the total order used for designated array sorting:
// primitives sort by their UTF-8 string form; maps/lists sort by their
// minimal sorted-key JSON form.
func sortKeyOf(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case map[string]any, []any:
		b, err := marshalCanonical(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		b, err := marshalCanonical(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// marshalCanonical serializes v with sorted map keys (encoding/json's
// default for map[string]any), no extraneous whitespace, and unescaped
// non-ASCII (ensure_ascii=false).
func marshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Hash returns the lowercase hex SHA-256 of v's canonical JSON serialization
// (C2). Callers pass the output of Canonicalize.
func Hash(v any) (string, error) {
	b, err := marshalCanonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalizeAndHash is a convenience wrapper combining C1 and C2.
func CanonicalizeAndHash(kind Kind, raw any) (any, string, error) {
	norm := Canonicalize(kind, raw)
	h, err := Hash(norm)
	if err != nil {
		return nil, "", err
	}
	return norm, h, nil
}
