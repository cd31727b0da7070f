package route

import (
	"context"

	"github.com/kailas-cloud/askdex/internal/domain/llm"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/domain/record"
	"github.com/kailas-cloud/askdex/internal/usecase/classify"
	"github.com/kailas-cloud/askdex/internal/usecase/extract"
)

// Store is the structured findings store.
type Store interface {
	Query(ctx context.Context, q record.Query) ([]record.Record, error)
	GetByID(ctx context.Context, id string) (record.Record, error)
}

// Generator produces model answers over a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, mode llm.Mode) (llm.Generation, error)
}

// Classifier scores a query and decides its kind.
type Classifier interface {
	Decide(text string) classify.Decision
}

// Extractor turns query text into validated filters.
type Extractor interface {
	ExtractPattern(text string) filters.Filters
	ExtractHybrid(ctx context.Context, text string) extract.Extraction
	Validate(f filters.Filters) extract.ValidationResult
	HasModel() bool
}

// IntentCache remembers resolved intents per user and query.
type IntentCache interface {
	Get(ctx context.Context, userID, query string) (intent.Intent, bool)
	Put(ctx context.Context, userID, query string, in intent.Intent)
}
