package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/peakfunnel/intentgraph/pkg/vectormath"
)

// HashProvider is a deterministic, dependency-free embedding provider.
// It hashes word unigrams and bigrams of the input into fixed buckets and
// normalizes the result. The vectors carry no learned semantics, but they
// are stable across processes, so similarity search and clustering keep
// functioning while the remote provider is down.
type HashProvider struct {
	dim int
}

// NewHashProvider creates a fallback provider producing vectors of the
// given dimension.
func NewHashProvider(dim int) *HashProvider {
	if dim <= 0 {
		dim = 512
	}
	return &HashProvider{dim: dim}
}

// Embed produces a deterministic vector for text. It never fails; empty
// input maps to the zero vector.
func (p *HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dim)
	terms := tokenize(text)
	if len(terms) == 0 {
		return vec, nil
	}

	add := func(term string, value float32) {
		h := fnv.New32a()
		h.Write([]byte(term))
		sum := h.Sum32()
		bucket := int(sum % uint32(p.dim))
		// The top hash bit picks a sign so buckets cancel rather than
		// accumulate uniformly.
		if sum&0x80000000 != 0 {
			value = -value
		}
		vec[bucket] += value
	}

	for i, term := range terms {
		add(term, 1)
		if i+1 < len(terms) {
			add(term+" "+terms[i+1], 0.5)
		}
	}

	return vectormath.Normalize(vec), nil
}

// ModelName identifies the fallback so stored vectors can be told apart
// from provider embeddings.
func (p *HashProvider) ModelName() string {
	return "local-hash-v1"
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
