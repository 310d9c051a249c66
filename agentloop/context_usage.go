package agentloop

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/spektasoft/spekta-cli/unifiedllm"
)

// contextWarnRatio is the share of the context window past which a warning
// is emitted.
const contextWarnRatio = 0.8

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

// getCodec returns the cl100k_base tokenizer. It is an approximation for
// non-OpenAI models.
func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// EstimateTokens returns an approximate token count for text, falling back
// to four characters per token when the tokenizer is unavailable.
func EstimateTokens(text string) int {
	c, err := getCodec()
	if err != nil {
		return len(text) / 4
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(ids)
}

// EstimateConversationTokens sums the estimate over every message's content
// and reasoning.
func EstimateConversationTokens(messages []unifiedllm.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m.Content)
		if m.Reasoning != "" {
			total += EstimateTokens(m.Reasoning)
		}
	}
	return total
}

// ContextUsage is the estimated fill level of the context window.
type ContextUsage struct {
	Tokens int
	Window int
}

// Percent returns usage as a whole percentage.
func (u ContextUsage) Percent() int {
	if u.Window <= 0 {
		return 0
	}
	return int(float64(u.Tokens) / float64(u.Window) * 100)
}

// OverThreshold reports whether usage exceeds the warning ratio.
func (u ContextUsage) OverThreshold() bool {
	return u.Window > 0 && float64(u.Tokens) > float64(u.Window)*contextWarnRatio
}
