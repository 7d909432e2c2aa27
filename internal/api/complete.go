package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// defaultMaxTokens caps a single reply when the caller does not set a
// limit.
const defaultMaxTokens = 8192

// Usage reports the tokens consumed by one exchange.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Complete sends a single-turn request and returns the concatenated
// text reply. Usage is recorded on the client's tracker and returned
// so callers can charge it against a budget allocation.
func (c *Client) Complete(ctx context.Context, system, prompt string, maxTokens int64) (string, Usage, error) {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	resp, err := c.sdk().Messages.New(ctx, params)
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic request: %w", err)
	}

	usage := Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	c.tracker.Add(usage.InputTokens, usage.OutputTokens)

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	return text.String(), usage, nil
}
