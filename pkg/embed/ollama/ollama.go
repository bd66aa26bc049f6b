// Package ollama provides an embedding provider backed by a locally
// hosted Ollama instance.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"

	"github.com/peakfunnel/intentgraph/pkg/embed"
	"github.com/peakfunnel/intentgraph/pkg/graph"
)

const (
	defaultTimeout       = 60 * time.Second
	defaultMaxConcurrent = 2
	maxEmbeddingTokens   = 8000
)

// Client satisfies embed.Provider using the Ollama embed API.
type Client struct {
	embeddingModel string
	dim            int
	timeout        time.Duration

	reqLock *semaphore.Weighted
	api     *api.Client
}

// Params configures a Client.
type Params struct {
	EmbeddingModel string
	BaseURL        string

	Dimensions            int
	MaxConcurrentRequests int64
	Timeout               time.Duration
}

// New creates an Ollama-backed embedding provider. An empty BaseURL uses
// the default local endpoint.
func New(params Params) (*Client, error) {
	base := params.BaseURL
	if base == "" {
		base = "http://127.0.0.1:11434"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base url: %w", err)
	}

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		embeddingModel: params.EmbeddingModel,
		dim:            params.Dimensions,
		timeout:        timeout,
		reqLock:        semaphore.NewWeighted(maxConcurrent),
		api:            api.NewClient(u, http.DefaultClient),
	}, nil
}

// Embed creates a vector embedding for text. Provider failures are
// reported as graph.ErrEmbeddingUnavailable.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, c.dim), nil
	}
	text = embed.TruncateTokens(text, maxEmbeddingTokens)

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", graph.ErrEmbeddingUnavailable, err)
	}
	defer c.reqLock.Release(1)

	res, err := c.api.Embed(rCtx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", graph.ErrEmbeddingUnavailable, err)
	}

	vec := make([]float32, 0, c.dim)
	for _, row := range res.Embeddings {
		for _, v := range row {
			if len(vec) >= c.dim {
				break
			}
			vec = append(vec, float32(v))
		}
	}
	if len(vec) < c.dim {
		padded := make([]float32, c.dim)
		copy(padded, vec)
		vec = padded
	}
	return vec, nil
}

// ModelName returns the configured embedding model identifier.
func (c *Client) ModelName() string {
	return c.embeddingModel
}
