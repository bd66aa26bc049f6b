package embed

import (
	"context"
	"sort"
	"strings"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "how": {}, "in": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {},
	"to": {}, "was": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"will": {}, "with": {}, "you": {}, "your": {},
}

// LocalKeywordClient implements KeywordClient without any remote
// dependency: keywords are the most frequent non-stopword terms and the
// label is the top keyword. It is the degraded-mode stand-in for the LLM
// collaborator.
type LocalKeywordClient struct {
	MaxKeywords int
}

// NewLocalKeywordClient returns a keyword client extracting up to
// maxKeywords terms per text.
func NewLocalKeywordClient(maxKeywords int) *LocalKeywordClient {
	if maxKeywords <= 0 {
		maxKeywords = 5
	}
	return &LocalKeywordClient{MaxKeywords: maxKeywords}
}

// ExtractKeywords returns the most frequent meaningful terms of text,
// ordered by descending frequency with ties broken alphabetically.
func (c *LocalKeywordClient) ExtractKeywords(_ context.Context, text string) ([]string, error) {
	counts := make(map[string]int)
	for _, term := range tokenize(text) {
		if len(term) < 3 {
			continue
		}
		if _, skip := stopwords[term]; skip {
			continue
		}
		counts[term]++
	}
	if len(counts) == 0 {
		return nil, nil
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > c.MaxKeywords {
		terms = terms[:c.MaxKeywords]
	}
	return terms, nil
}

// SummarizeShortLabel returns a short label built from the leading
// keywords of text.
func (c *LocalKeywordClient) SummarizeShortLabel(ctx context.Context, text string) (string, error) {
	keywords, err := c.ExtractKeywords(ctx, text)
	if err != nil || len(keywords) == 0 {
		return "general", err
	}
	if len(keywords) > 2 {
		keywords = keywords[:2]
	}
	return strings.Join(keywords, "-"), nil
}
