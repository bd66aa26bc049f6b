// Package embed defines the embedding provider contract used by the
// semantic graph, together with a deterministic local fallback provider
// for degraded operation. Concrete remote adapters live in the openai and
// ollama subpackages.
package embed

import "context"

// Provider turns arbitrary text into a fixed-length numeric vector.
//
// Implementations must bound every call with a timeout. A provider that
// cannot serve a request returns an error wrapping
// graph.ErrEmbeddingUnavailable so callers can switch to the local
// fallback.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// KeywordClient is the optional LLM collaborator used for cluster naming.
// Failures here degrade naming quality but never block classification.
type KeywordClient interface {
	SummarizeShortLabel(ctx context.Context, text string) (string, error)
	ExtractKeywords(ctx context.Context, text string) ([]string, error)
}
