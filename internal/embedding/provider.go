// Package embedding implements embedding providers behind a tiny interface,
// grounded on platform/brain-core/internal/activities/embedding.go: a
// lazy-singleton selector between a real provider and deterministic
// stand-ins for dev/test, selected by environment variable.
package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
)

// Provider is the minimal embed API consumed by the Upstream Client (C6).
type Provider interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
	ModelName() string
}

// ZeroProvider returns zero vectors; useful as a safe placeholder until a
// real provider is wired, or in tests that don't care about vector content.
type ZeroProvider struct {
	Dim int
}

func (p *ZeroProvider) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	if p.Dim <= 0 {
		return nil, errors.New("embedding: invalid dimension")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.Dim)
	}
	return out, nil
}

func (p *ZeroProvider) ModelName() string { return "zero-vector" }

// LocalProvider produces deterministic hashed embeddings with no external
// calls, for local development and unit tests that exercise real cosine
// similarity without a network dependency.
type LocalProvider struct {
	Dim int
}

func (p *LocalProvider) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	if p.Dim <= 0 {
		return nil, errors.New("embedding: invalid dimension")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embedOne(t)
	}
	return out, nil
}

func (p *LocalProvider) embedOne(text string) []float32 {
	vec := make([]float32, p.Dim)
	words := strings.Fields(text)
	if len(words) == 0 {
		return vec
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		idx := int(h.Sum32()) % p.Dim
		if idx < 0 {
			idx = -idx
		}
		vec[idx] += 1.0
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		n := float32(1.0) / norm
		for i := range vec {
			vec[i] *= n
		}
	}
	return vec
}

func (p *LocalProvider) ModelName() string { return "local-fnv-hash" }
