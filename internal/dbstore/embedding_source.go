package dbstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode/utf8"
)

// SourceVersion stamps every row the builder writes; bump when the template
// in buildSourceText changes shape so the embedding writer's diff query
// picks up every item for re-embedding.
const SourceVersion = "source-v1"

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// sourceItem is the subset of item/feature state the source-text template
// needs.
type sourceItem struct {
	itemID    int64
	itemName  string
	catchcopy string
	caption   string
	genreName string
	tags      []string
	priceYen  *int64
}

// SourceBuilder derives each active item's embedding source text and its
// stable hash (C11).
type SourceBuilder struct {
	store *Store
}

// NewSourceBuilder wraps store.
func NewSourceBuilder(store *Store) *SourceBuilder { return &SourceBuilder{store: store} }

// Run rebuilds the embedding source row for every active item, diff-gated
// by source_hash.
func (b *SourceBuilder) Run(ctx context.Context) (map[int64]bool, error) {
	items, err := b.activeItems(ctx)
	if err != nil {
		return nil, err
	}
	changed := make(map[int64]bool, len(items))
	for _, it := range items {
		text := buildSourceText(it)
		if utf8.RuneCountInString(text) < 20 {
			log.Printf("dbstore: embedding source text for item_id=%d is only %d runes", it.itemID, utf8.RuneCountInString(text))
		}
		hash := sourceHash(text)
		didChange, err := b.upsert(ctx, it.itemID, text, hash)
		if err != nil {
			return changed, err
		}
		changed[it.itemID] = didChange
	}
	return changed, nil
}

func (b *SourceBuilder) activeItems(ctx context.Context) ([]sourceItem, error) {
	rows, err := b.store.pool.Query(ctx, `
SELECT i.id, i.item_name, i.catchcopy, i.caption, COALESCE(g.genre_name, ''),
       COALESCE(array_agg(t.tag_name) FILTER (WHERE t.tag_name IS NOT NULL), '{}'),
       f.price_yen
FROM apl.items i
LEFT JOIN apl.genres g ON g.id = i.genre_id
LEFT JOIN apl.item_tags it ON it.item_id = i.id
LEFT JOIN apl.tags t ON t.id = it.tag_id
LEFT JOIN apl.item_features f ON f.item_id = i.id
WHERE i.is_active = true
GROUP BY i.id, i.item_name, i.catchcopy, i.caption, g.genre_name, f.price_yen`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sourceItem
	for rows.Next() {
		var it sourceItem
		var tags []string
		if err := rows.Scan(&it.itemID, &it.itemName, &it.catchcopy, &it.caption, &it.genreName, &tags, &it.priceYen); err != nil {
			return nil, err
		}
		it.tags = tags
		out = append(out, it)
	}
	return out, rows.Err()
}

func (b *SourceBuilder) upsert(ctx context.Context, itemID int64, text, hash string) (bool, error) {
	ct, err := b.store.pool.Exec(ctx, `
INSERT INTO apl.embedding_sources (item_id, source_version, source_text, source_hash, updated_at)
VALUES ($1,$2,$3,$4,now())
ON CONFLICT (item_id) DO UPDATE SET
  source_version = EXCLUDED.source_version, source_text = EXCLUDED.source_text,
  source_hash = EXCLUDED.source_hash, updated_at = now()
WHERE apl.embedding_sources.source_hash IS DISTINCT FROM EXCLUDED.source_hash`,
		itemID, SourceVersion, text, hash)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// normalizeField strips HTML-like tags, unifies CR/LF, collapses intra-line
// whitespace runs, trims each line, and drops blank lines.
func normalizeField(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	var kept []string
	for _, line := range lines {
		line = collapseSpaces(strings.TrimSpace(line))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

var spaceRunPattern = regexp.MustCompile(`[ \t]+`)

func collapseSpaces(s string) string {
	return spaceRunPattern.ReplaceAllString(s, " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// buildSourceText renders the Japanese-language template from §4.11. Missing
// fields are omitted along with their label; the blank separator line
// appears only when both the header and detail blocks are nonempty.
func buildSourceText(it sourceItem) string {
	name := normalizeField(it.itemName)
	catch := normalizeField(it.catchcopy)
	caption := truncateRunes(normalizeField(it.caption), 2000)
	genre := normalizeField(it.genreName)

	var header []string
	if name != "" {
		header = append(header, "商品名: "+name)
	}
	if catch != "" {
		header = append(header, "キャッチコピー: "+catch)
	}
	if caption != "" {
		header = append(header, "商品説明: "+caption)
	}

	var detail []string
	if genre != "" {
		detail = append(detail, "ジャンル: "+genre)
	}
	if tags := normalizedTagList(it.tags); tags != "" {
		detail = append(detail, "タグ: "+tags)
	}
	if it.priceYen != nil {
		detail = append(detail, fmt.Sprintf("価格: %d円", *it.priceYen))
	}

	var parts []string
	if len(header) > 0 {
		parts = append(parts, strings.Join(header, "\n"))
	}
	if len(header) > 0 && len(detail) > 0 {
		parts = append(parts, "")
	}
	if len(detail) > 0 {
		parts = append(parts, strings.Join(detail, "\n"))
	}
	return strings.Join(parts, "\n")
}

func normalizedTagList(tags []string) string {
	var kept []string
	for _, t := range tags {
		if n := normalizeField(t); n != "" {
			kept = append(kept, n)
			if len(kept) == 30 {
				break
			}
		}
	}
	return strings.Join(kept, ", ")
}

func sourceHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
