package dbstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"github.com/nucleus/giftreco/internal/upstream"
)

// VectorStore is the lib/pq-backed half of the relational store dedicated to
// apl.item_embeddings, mirroring store-core's PgVectorStore: a bracketed
// decimal literal built by hand rather than relying on a pgvector Go type,
// so this half of dbstore can use database/sql directly instead of pgx.
type VectorStore struct {
	db *sql.DB
}

// OpenVectorStore opens a second connection pool over the same DSN dedicated
// to vector literal formatting (lib/pq, not pgx — see DESIGN.md).
func OpenVectorStore(dsn string) (*VectorStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &VectorStore{db: db}, nil
}

// Close releases the connection pool.
func (v *VectorStore) Close() error { return v.db.Close() }

// EmbeddingWriter implements C12: for each item whose source_hash changed,
// call the embedder and upsert the resulting vector.
type EmbeddingWriter struct {
	vectors  *VectorStore
	embedder *upstream.Embedder
	model    string
}

// NewEmbeddingWriter wraps vectors and embedder, targeting model.
func NewEmbeddingWriter(vectors *VectorStore, embedder *upstream.Embedder, model string) *EmbeddingWriter {
	return &EmbeddingWriter{vectors: vectors, embedder: embedder, model: model}
}

// pendingRow is one item whose embedding needs recomputation.
type pendingRow struct {
	itemID     int64
	sourceText string
	sourceHash string
}

// Run loads every embedding_sources row whose source_hash differs from the
// stored item_embeddings row for this model (or has no row at all),
// embeds, and upserts.
func (w *EmbeddingWriter) Run(ctx context.Context) (map[int64]bool, error) {
	rows, err := w.pendingRows(ctx)
	if err != nil {
		return nil, err
	}
	changed := make(map[int64]bool, len(rows))
	for _, r := range rows {
		vec, err := w.embedder.Embed(ctx, r.sourceText, w.model)
		if err != nil {
			return changed, fmt.Errorf("dbstore: embed item_id=%d: %w", r.itemID, err)
		}
		did, err := w.upsert(ctx, r.itemID, vec, r.sourceHash)
		if err != nil {
			return changed, err
		}
		changed[r.itemID] = did
	}
	return changed, nil
}

func (w *EmbeddingWriter) pendingRows(ctx context.Context) ([]pendingRow, error) {
	rows, err := w.vectors.db.QueryContext(ctx, `
SELECT s.item_id, s.source_text, s.source_hash
FROM apl.embedding_sources s
LEFT JOIN apl.item_embeddings e ON e.item_id = s.item_id AND e.model = $1
WHERE e.item_id IS NULL OR e.source_hash IS DISTINCT FROM s.source_hash`,
		w.model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pendingRow
	for rows.Next() {
		var r pendingRow
		if err := rows.Scan(&r.itemID, &r.sourceText, &r.sourceHash); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (w *EmbeddingWriter) upsert(ctx context.Context, itemID int64, vec []float32, hash string) (bool, error) {
	lit := vectorLiteral(vec)
	res, err := w.vectors.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO apl.item_embeddings (item_id, model, embedding, source_hash, updated_at)
VALUES ($1,$2,%s,$3,now())
ON CONFLICT (item_id, model) DO UPDATE SET
  embedding = EXCLUDED.embedding, source_hash = EXCLUDED.source_hash, updated_at = now()
WHERE apl.item_embeddings.source_hash IS DISTINCT FROM EXCLUDED.source_hash`, lit),
		itemID, w.model, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// vectorLiteral serializes an embedding as a compact bracketed decimal form
// with 8 fractional digits (§4.12), the pgvector input-text format.
func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', 8, 32)
	}
	return "'[" + strings.Join(parts, ",") + "]'"
}
