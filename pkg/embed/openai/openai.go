// Package openai provides the OpenAI-compatible embedding provider and
// keyword collaborator used in production deployments.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"

	"github.com/peakfunnel/intentgraph/pkg/embed"
	"github.com/peakfunnel/intentgraph/pkg/graph"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultMaxConcurrent  = 4
	defaultKeywordModel   = "gpt-4o-mini"
	maxEmbeddingTokens    = 8000
	keywordPromptTemplate = "Extract up to 5 short topical keywords from the following text. " +
		"Reply with a comma-separated list only, no explanation.\n\n%s"
	labelPromptTemplate = "Summarize the following text as a 2-4 word topic label. " +
		"Reply with the label only.\n\n%s"
)

// Client embeds text and extracts keywords through an OpenAI-compatible
// API. It satisfies embed.Provider and embed.KeywordClient.
type Client struct {
	embeddingModel string
	keywordModel   string
	dim            int
	timeout        time.Duration

	reqLock *semaphore.Weighted
	api     *openai.Client
}

// Params configures a Client. BaseURL may point at any OpenAI-compatible
// endpoint; an empty URL uses the public API.
type Params struct {
	EmbeddingModel string
	KeywordModel   string
	BaseURL        string
	APIKey         string

	// Dimensions is the process-wide embedding dimension; provider output
	// is truncated or zero-padded to it.
	Dimensions int

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

// New creates a Client from params. Returns an error when no API key is
// configured.
func New(params Params) (*Client, error) {
	if params.APIKey == "" {
		return nil, fmt.Errorf("openai: missing API key")
	}

	options := []option.RequestOption{option.WithAPIKey(params.APIKey)}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	api := openai.NewClient(options...)

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	keywordModel := params.KeywordModel
	if keywordModel == "" {
		keywordModel = defaultKeywordModel
	}

	return &Client{
		embeddingModel: params.EmbeddingModel,
		keywordModel:   keywordModel,
		dim:            params.Dimensions,
		timeout:        timeout,
		reqLock:        semaphore.NewWeighted(maxConcurrent),
		api:            &api,
	}, nil
}

// Embed creates a vector embedding for text. Empty input maps to the zero
// vector. Provider failures are reported as graph.ErrEmbeddingUnavailable
// so callers can fall back to the local provider.
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

	response, err := c.api.Embeddings.New(rCtx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", graph.ErrEmbeddingUnavailable, err)
	}
	if len(response.Data) != 1 {
		return nil, fmt.Errorf("%w: unexpected embedding result size %d", graph.ErrEmbeddingUnavailable, len(response.Data))
	}

	vec := make([]float32, 0, c.dim)
	for _, v := range response.Data[0].Embedding {
		if len(vec) >= c.dim {
			break
		}
		vec = append(vec, float32(v))
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

// ExtractKeywords asks the chat model for topical keywords.
func (c *Client) ExtractKeywords(ctx context.Context, text string) ([]string, error) {
	raw, err := c.complete(ctx, fmt.Sprintf(keywordPromptTemplate, text))
	if err != nil {
		return nil, err
	}
	parts := strings.Split(raw, ",")
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		kw := strings.ToLower(strings.TrimSpace(part))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords, nil
}

// SummarizeShortLabel asks the chat model for a short topic label.
func (c *Client) SummarizeShortLabel(ctx context.Context, text string) (string, error) {
	label, err := c.complete(ctx, fmt.Sprintf(labelPromptTemplate, text))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(label)), nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return "", err
	}
	defer c.reqLock.Release(1)

	response, err := c.api.Chat.Completions.New(rCtx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.keywordModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai: empty completion response")
	}
	return response.Choices[0].Message.Content, nil
}
