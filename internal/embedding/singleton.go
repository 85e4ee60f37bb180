package embedding

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	once sync.Once
	inst Provider
)

// Get returns the process-wide embedding provider, built on first use from
// environment variables (design note: "module-level clients -> lazy
// singletons with explicit lifetimes").
//
// EMBEDDING_PROVIDER selects "openai" (default when OPENAI_API_KEY is set),
// "local", or falls back to "zero". EMBED_DIM sizes the local/zero
// providers; OPENAI_EMBEDDING_MODEL names the OpenAI model (default
// text-embedding-3-small per spec §6).
func Get() Provider {
	once.Do(func() {
		inst = build()
	})
	return inst
}

func build() Provider {
	dim := 1536
	if v := os.Getenv("EMBED_DIM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			dim = parsed
		}
	}

	switch strings.ToLower(os.Getenv("EMBEDDING_PROVIDER")) {
	case "local":
		return &LocalProvider{Dim: dim}
	case "zero":
		return &ZeroProvider{Dim: dim}
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return &ZeroProvider{Dim: dim}
	}
	model := os.Getenv("OPENAI_EMBEDDING_MODEL")
	if model == "" {
		model = "text-embedding-3-small"
	}
	return NewOpenAIProvider("", apiKey, model)
}
