package extract

import (
	"context"

	"github.com/kailas-cloud/askdex/internal/domain/llm"
)

// StructuredExtractor asks the language model to fill a fixed schema from text.
type StructuredExtractor interface {
	ExtractStructured(ctx context.Context, text string, schema llm.Schema) (map[string]any, error)
}
