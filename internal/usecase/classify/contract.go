package classify

import "github.com/kailas-cloud/askdex/internal/domain/query/filters"

// FilterSource extracts filters deterministically from query text.
type FilterSource interface {
	ExtractPattern(text string) filters.Filters
}
