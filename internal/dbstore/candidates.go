package dbstore

import (
	"context"
	"fmt"
	"strings"
)

// Candidate is one scoreable row joined from item features and its
// embedding (C14's in-memory join output).
type Candidate struct {
	ItemID          int64
	ItemCode        string
	ItemName        string
	ItemURL         string
	AffiliateURL    string
	PriceYen        int64
	PopularityScore *float64
	Rank            *int32
	ReviewAverage   *float64
	ReviewCount     *int64
	TagIDs          []int64
	Embedding       []float32
}

// CandidateLoader implements C14: active items within an optional budget,
// joined in-memory to their embeddings loaded in chunks of at most 100 ids.
type CandidateLoader struct {
	store   *Store
	vectors *VectorStore
	model   string
}

// NewCandidateLoader wraps store/vectors, targeting model's embeddings.
func NewCandidateLoader(store *Store, vectors *VectorStore, model string) *CandidateLoader {
	return &CandidateLoader{store: store, vectors: vectors, model: model}
}

const embeddingChunkSize = 100

// Load returns every active, in-budget candidate that has an embedding of
// dimension == contextDim; candidates without an embedding, or with a
// mismatched dimension, are discarded.
func (l *CandidateLoader) Load(ctx context.Context, budgetMin, budgetMax *int64, contextDim int) ([]Candidate, error) {
	base, err := l.loadFeatureRows(ctx, budgetMin, budgetMax)
	if err != nil {
		return nil, err
	}
	if len(base) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(base))
	for i, c := range base {
		ids[i] = c.ItemID
	}
	embeddings, err := l.loadEmbeddingsChunked(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(base))
	for _, c := range base {
		vec, ok := embeddings[c.ItemID]
		if !ok || len(vec) != contextDim {
			continue
		}
		c.Embedding = vec
		out = append(out, c)
	}
	return out, nil
}

func (l *CandidateLoader) loadFeatureRows(ctx context.Context, budgetMin, budgetMax *int64) ([]Candidate, error) {
	where := []string{"i.is_active = true"}
	args := []any{}
	argIdx := 1
	if budgetMin != nil {
		where = append(where, fmt.Sprintf("ms.price_yen >= $%d", argIdx))
		args = append(args, *budgetMin)
		argIdx++
	}
	if budgetMax != nil {
		where = append(where, fmt.Sprintf("ms.price_yen <= $%d", argIdx))
		args = append(args, *budgetMax)
		argIdx++
	}

	query := fmt.Sprintf(`
SELECT i.id, i.rakuten_item_code, i.item_name, i.item_url, i.affiliate_url,
       COALESCE(ms.price_yen, 0), f.popularity_score, f.rank, f.review_average, f.review_count,
       COALESCE(f.tag_ids, '{}')
FROM apl.items i
JOIN apl.item_features f ON f.item_id = i.id
LEFT JOIN LATERAL (
  SELECT price_yen FROM apl.market_snapshots WHERE item_id = i.id ORDER BY collected_at DESC LIMIT 1
) ms ON true
WHERE %s`, strings.Join(where, " AND "))

	rows, err := l.store.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ItemID, &c.ItemCode, &c.ItemName, &c.ItemURL, &c.AffiliateURL,
			&c.PriceYen, &c.PopularityScore, &c.Rank, &c.ReviewAverage, &c.ReviewCount, &c.TagIDs); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (l *CandidateLoader) loadEmbeddingsChunked(ctx context.Context, ids []int64) (map[int64][]float32, error) {
	out := make(map[int64][]float32, len(ids))
	for start := 0; start < len(ids); start += embeddingChunkSize {
		end := start + embeddingChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := l.loadEmbeddingChunk(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		for k, v := range chunk {
			out[k] = v
		}
	}
	return out, nil
}

func (l *CandidateLoader) loadEmbeddingChunk(ctx context.Context, ids []int64) (map[int64][]float32, error) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids)+1)
	args[0] = l.model
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args[i+1] = id
	}
	query := fmt.Sprintf(`
SELECT item_id, embedding::text FROM apl.item_embeddings
WHERE model = $1 AND item_id IN (%s)`, strings.Join(placeholders, ","))

	rows, err := l.vectors.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]float32, len(ids))
	for rows.Next() {
		var itemID int64
		var lit string
		if err := rows.Scan(&itemID, &lit); err != nil {
			return nil, err
		}
		vec, err := parseVectorLiteral(lit)
		if err != nil {
			return nil, err
		}
		out[itemID] = vec
	}
	return out, rows.Err()
}

// parseVectorLiteral parses pgvector's text output form "[0.1,0.2,...]".
func parseVectorLiteral(s string) ([]float32, error) {
	s = strings.Trim(s, "[]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &f); err != nil {
			return nil, fmt.Errorf("dbstore: parse vector literal: %w", err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
