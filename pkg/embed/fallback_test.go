package embed

import (
	"context"
	"testing"

	"github.com/peakfunnel/intentgraph/pkg/vectormath"
)

func TestHashProvider_Deterministic(t *testing.T) {
	p := NewHashProvider(128)
	ctx := context.Background()

	a1, err := p.Embed(ctx, "best travel credit card offers")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := p.Embed(ctx, "best travel credit card offers")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(a1) != 128 {
		t.Fatalf("expected dimension 128, got %d", len(a1))
	}
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("expected identical vectors for identical input, differ at %d", i)
		}
	}
}

func TestHashProvider_SimilarTextCloserThanUnrelated(t *testing.T) {
	p := NewHashProvider(256)
	ctx := context.Background()

	a, _ := p.Embed(ctx, "travel credit card rewards guide")
	b, _ := p.Embed(ctx, "credit card rewards for travel")
	c, _ := p.Embed(ctx, "vegan lasagna dinner recipe")

	simAB := vectormath.CosineSimilarity(a, b)
	simAC := vectormath.CosineSimilarity(a, c)
	if simAB <= simAC {
		t.Fatalf("expected overlapping text to score higher: sim(a,b)=%v sim(a,c)=%v", simAB, simAC)
	}
}

func TestHashProvider_EmptyInput(t *testing.T) {
	p := NewHashProvider(64)
	vec, err := p.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector for empty input, component %d = %v", i, v)
		}
	}
}

func TestHashProvider_UnitNorm(t *testing.T) {
	p := NewHashProvider(64)
	vec, _ := p.Embed(context.Background(), "some text")
	n := vectormath.Norm(vec)
	if n < 0.999 || n > 1.001 {
		t.Fatalf("expected unit norm, got %v", n)
	}
}

func TestLocalKeywordClient(t *testing.T) {
	c := NewLocalKeywordClient(3)
	keywords, err := c.ExtractKeywords(context.Background(),
		"Compare savings accounts and savings rates for high yield savings")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keywords) == 0 || keywords[0] != "savings" {
		t.Fatalf("expected savings as top keyword, got %v", keywords)
	}
	if len(keywords) > 3 {
		t.Fatalf("expected at most 3 keywords, got %d", len(keywords))
	}

	label, err := c.SummarizeShortLabel(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != "general" {
		t.Fatalf("expected general label for empty text, got %q", label)
	}
}
