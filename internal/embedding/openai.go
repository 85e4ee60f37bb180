package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/nucleus/giftreco/internal/httpclient"
)

// OpenAIProvider calls the embedding provider's /v1/embeddings endpoint
// through the shared Retry Transport (C5) rather than a bespoke net/http
// call, per the design note that commerce and embedding clients must not
// duplicate the backoff ladder.
type OpenAIProvider struct {
	http  *httpclient.Client
	model string
}

// NewOpenAIProvider builds a provider against baseURL (default
// https://api.openai.com) authenticated with apiKey.
func NewOpenAIProvider(baseURL, apiKey, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	cfg := httpclient.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Headers = map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
	}
	return &OpenAIProvider{http: httpclient.NewClient(cfg), model: model}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (p *OpenAIProvider) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if model == "" {
		model = p.model
	}
	resp, err := p.http.Post(ctx, "/v1/embeddings", embeddingsRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	var decoded embeddingsResponse
	if err := resp.JSON(&decoded); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, errors.New("embedding: response count mismatch")
	}
	out := make([][]float32, len(texts))
	for i, d := range decoded.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

func (p *OpenAIProvider) ModelName() string { return p.model }
