// Package response defines the shapes returned by the query router.
package response

import (
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/domain/record"
)

// Response is the result of routing one query. Data and analysis sections
// are independent fields.
type Response struct {
	Kind       intent.Kind      `json:"kind"`
	Answer     string           `json:"answer"`
	Records    []record.Summary `json:"records,omitempty"`
	Pagination *Pagination      `json:"pagination,omitempty"`
	Analysis   *Analysis        `json:"analysis,omitempty"`
	Metadata   Metadata         `json:"metadata"`
}

// Pagination describes a paged data section.
type Pagination struct {
	Paginated  bool `json:"paginated"`
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
}

// Analysis is the model-produced section of a response.
type Analysis struct {
	Performed  bool        `json:"performed"`
	Text       string      `json:"text"`
	References []Reference `json:"references,omitempty"`
}

// Reference points back to a record used as model context.
type Reference struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Severity string `json:"severity"`
	Status   string `json:"status"`
	Date     string `json:"date"`
}

// Metadata is the execution envelope common to every response.
// TokensUsed is set exactly when the model was invoked.
type Metadata struct {
	QueryID         string          `json:"query_id,omitempty"`
	Kind            intent.Kind     `json:"kind"`
	ScoredKind      intent.Kind     `json:"scored_kind,omitempty"`
	ExecutionTimeMs int64           `json:"execution_time_ms"`
	RecordsAnalyzed int             `json:"records_analyzed"`
	TokensUsed      *int            `json:"tokens_used,omitempty"`
	Confidence      float64         `json:"confidence"`
	Filters         filters.Filters `json:"filters"`
	TriggerTerms    []string        `json:"trigger_terms,omitempty"`
	ContextOmitted  int             `json:"context_omitted,omitempty"`
	Cached          bool            `json:"cached,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// AddWarning appends a warning message.
func (m *Metadata) AddWarning(msg string) {
	m.Warnings = append(m.Warnings, msg)
}

// ModelInvoked reports whether the response carries model usage.
func (r Response) ModelInvoked() bool { return r.Metadata.TokensUsed != nil }
