package upstream

import (
	"context"
	"fmt"
	"strings"

	"github.com/nucleus/giftreco/internal/embedding"
)

// placeholderText stands in for empty/whitespace-only source text so the
// embedding provider always receives something to encode (C6).
const placeholderText = "（内容なし）"

// Embedder wraps an embedding.Provider with the C6 facade: empty/whitespace
// text replaced by a fixed placeholder, single-vector convenience method.
type Embedder struct {
	provider embedding.Provider
}

// NewEmbedder wraps provider.
func NewEmbedder(provider embedding.Provider) *Embedder {
	return &Embedder{provider: provider}
}

// Embed returns the embedding vector for text under model (empty model uses
// the provider's default).
func (e *Embedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		t = placeholderText
	}
	vecs, err := e.provider.Embed(ctx, model, []string{t})
	if err != nil {
		return nil, fmt.Errorf("upstream: embed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("upstream: embed: expected 1 vector, got %d", len(vecs))
	}
	return vecs[0], nil
}

// ModelName returns the active model name for metadata columns.
func (e *Embedder) ModelName() string { return e.provider.ModelName() }
