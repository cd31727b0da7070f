package model

import (
	"context"

	"github.com/kailas-cloud/askdex/internal/domain/llm"
)

// Model is the language model consumed by the router.
type Model interface {
	Generate(ctx context.Context, prompt string, mode llm.Mode) (llm.Generation, error)
	ExtractStructured(ctx context.Context, text string, schema llm.Schema) (map[string]any, error)
}
