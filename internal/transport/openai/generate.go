package openai

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/askdex/internal/domain/llm"
)

// Generate implements the model capability for free-text answers.
func (c *Client) Generate(ctx context.Context, prompt string, mode llm.Mode) (llm.Generation, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelFor(mode),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		User:        c.cfg.User,
	}
	if c.cfg.MaxTokens > 0 {
		req.MaxCompletionTokens = c.cfg.MaxTokens
	}
	if c.cfg.ReasoningEffort {
		req.ReasoningEffort = string(mode)
	}

	resp, err := c.complete(ctx, "generate", req)
	if err != nil {
		return llm.Generation{}, err
	}

	return llm.Generation{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
