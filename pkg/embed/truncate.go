package embed

import (
	"github.com/pkoukk/tiktoken-go"
)

const truncateEncoding = "cl100k_base"

// TruncateTokens cuts text down to at most maxTokens tokens so provider
// input limits are never exceeded. If the tokenizer cannot be loaded the
// text is cut by runes instead, assuming roughly four runes per token.
func TruncateTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}

	enc, err := tiktoken.GetEncoding(truncateEncoding)
	if err != nil {
		runes := []rune(text)
		limit := maxTokens * 4
		if len(runes) <= limit {
			return text
		}
		return string(runes[:limit])
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}
