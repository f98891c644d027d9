package token

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter measures and trims text in model tokens.
type Counter struct {
	enc *tiktoken.Tiktoken
}

func New(encoding string) (*Counter, error) {
	if strings.TrimSpace(encoding) == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", encoding, err)
	}
	return &Counter{enc: enc}, nil
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Truncate keeps the first maxTokens tokens of text and reports how many
// were kept.
func (c *Counter) Truncate(text string, maxTokens int) (string, int) {
	if text == "" || maxTokens <= 0 {
		return "", 0
	}
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, len(tokens)
	}
	return strings.ToValidUTF8(c.enc.Decode(tokens[:maxTokens]), ""), maxTokens
}

// FitDiff trims diff so that fixed and diff together stay within maxTokens.
// The diff is cut on a line boundary when one is available; fixed text is
// never shortened.
func (c *Counter) FitDiff(fixed, diff string, maxTokens int) string {
	if maxTokens <= 0 {
		return diff
	}
	remaining := maxTokens - c.Count(fixed)
	if remaining <= 0 {
		return ""
	}
	cut, kept := c.Truncate(diff, remaining)
	if kept == c.Count(diff) {
		return diff
	}
	if idx := strings.LastIndex(cut, "\n"); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
