package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/llm"
)

const extractInstructions = "Extract search filters from the user's question about audit findings. " +
	"Fill only the fields the question states or clearly implies and leave the others out. " +
	"Use the allowed values exactly as listed."

// ExtractStructured asks the model for a JSON object matching schema.
func (c *Client) ExtractStructured(ctx context.Context, text string, schema llm.Schema) (map[string]any, error) {
	def := toDefinition(schema.Root)
	req := openai.ChatCompletionRequest{
		Model: c.cfg.ExtractModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractInstructions},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        schema.Name,
				Description: schema.Description,
				Schema:      &def,
			},
		},
		User: c.cfg.User,
	}

	resp, err := c.complete(ctx, "extract", req)
	if err != nil {
		return nil, err
	}

	content := stripFences(resp.Choices[0].Message.Content)
	var out map[string]any
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("decode structured output: %w: %w", domain.ErrModelMalformedResponse, err)
	}
	return out, nil
}

// toDefinition converts a provider-neutral schema property.
func toDefinition(p llm.Property) jsonschema.Definition {
	d := jsonschema.Definition{
		Type:        jsonschema.DataType(p.Type),
		Description: p.Description,
		Enum:        p.Enum,
		Required:    p.Required,
	}
	if p.Items != nil {
		items := toDefinition(*p.Items)
		d.Items = &items
	}
	if len(p.Properties) > 0 {
		d.Properties = make(map[string]jsonschema.Definition, len(p.Properties))
		for name, prop := range p.Properties {
			d.Properties[name] = toDefinition(prop)
		}
	}
	return d
}

// stripFences removes a markdown code fence some providers wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
