// Package format builds the data, analysis and combined response shapes.
package format

import (
	"fmt"

	"github.com/kailas-cloud/askdex/internal/domain/query/response"
	"github.com/kailas-cloud/askdex/internal/domain/record"
)

// DefaultPageSize is the largest data section returned without pagination.
const DefaultPageSize = 50

// Messages shown when a path produced nothing to reason over.
const (
	NoRecordsAnswer      = "No findings matched your query. Try removing a filter or widening the date range."
	AnalysisSkippedText  = "No records matched the query, so no analysis was performed."
	NoCandidatesAnswer   = "No findings matched the question, so there was nothing to analyze. Try broadening the filters or rephrasing."
	ModelFallbackNoteFmt = "Analysis is unavailable right now (%s). Showing the matching findings instead; retry later for an analysis."
)

// Formatter assembles responses. It is stateless apart from the page size.
type Formatter struct {
	pageSize int
}

// New creates a formatter. A non-positive page size uses DefaultPageSize.
func New(pageSize int) *Formatter {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Formatter{pageSize: pageSize}
}

// PageSize returns the configured page size.
func (f *Formatter) PageSize() int { return f.pageSize }

// FormatData returns the first page of a data-only response.
func (f *Formatter) FormatData(records []record.Record, meta response.Metadata) response.Response {
	return f.FormatDataPage(records, 1, meta)
}

// FormatDataPage returns a data-only response. Result sets larger than the
// page size switch to the paginated shape.
func (f *Formatter) FormatDataPage(records []record.Record, page int, meta response.Metadata) response.Response {
	meta.RecordsAnalyzed = len(records)
	summaries, pg := f.paginate(records, page)

	return response.Response{
		Kind:       meta.Kind,
		Answer:     dataAnswer(len(records), pg),
		Records:    summaries,
		Pagination: pg,
		Metadata:   meta,
	}
}

// FormatAnalysis returns an analysis-only response with references to every
// source record that was given to the model.
func (f *Formatter) FormatAnalysis(answer string, sources []record.Record, meta response.Metadata) response.Response {
	meta.RecordsAnalyzed = len(sources)
	ensureTokens(&meta)

	return response.Response{
		Kind:   meta.Kind,
		Answer: answer,
		Analysis: &response.Analysis{
			Performed:  true,
			Text:       answer,
			References: references(sources),
		},
		Metadata: meta,
	}
}

// FormatCombined returns a response with separate data and analysis
// sections, the analysis citing the same records.
func (f *Formatter) FormatCombined(records []record.Record, answer string, meta response.Metadata) response.Response {
	return f.FormatCombinedFrom(records, records, answer, meta)
}

// FormatCombinedFrom is FormatCombined where only sources were used as model
// context. With no records the analysis section states that no analysis
// was performed and no token usage is reported.
func (f *Formatter) FormatCombinedFrom(
	records, sources []record.Record, answer string, meta response.Metadata,
) response.Response {
	return f.FormatCombinedPage(records, sources, 1, answer, meta)
}

// FormatCombinedPage is FormatCombinedFrom with the data section cut to the
// requested page. The analysis always cites every source.
func (f *Formatter) FormatCombinedPage(
	records, sources []record.Record, page int, answer string, meta response.Metadata,
) response.Response {
	if len(records) == 0 {
		return f.FormatAnalysisSkipped(meta)
	}

	meta.RecordsAnalyzed = len(records)
	ensureTokens(&meta)
	summaries, pg := f.paginate(records, page)

	return response.Response{
		Kind:       meta.Kind,
		Answer:     answer,
		Records:    summaries,
		Pagination: pg,
		Analysis: &response.Analysis{
			Performed:  true,
			Text:       answer,
			References: references(sources),
		},
		Metadata: meta,
	}
}

// FormatAnalysisSkipped returns the combined shape for an empty store result.
func (f *Formatter) FormatAnalysisSkipped(meta response.Metadata) response.Response {
	meta.RecordsAnalyzed = 0
	meta.TokensUsed = nil

	return response.Response{
		Kind:    meta.Kind,
		Answer:  NoRecordsAnswer,
		Records: []record.Summary{},
		Analysis: &response.Analysis{
			Performed: false,
			Text:      AnalysisSkippedText,
		},
		Metadata: meta,
	}
}

// FormatNoCandidates returns the explanatory data-only response used when
// there is no context to reason over.
func (f *Formatter) FormatNoCandidates(meta response.Metadata) response.Response {
	meta.RecordsAnalyzed = 0
	meta.TokensUsed = nil

	return response.Response{
		Kind:     meta.Kind,
		Answer:   NoCandidatesAnswer,
		Records:  []record.Summary{},
		Metadata: meta,
	}
}

// FormatModelFallback returns the retrieved records when the model could not
// answer, with a note explaining why.
func (f *Formatter) FormatModelFallback(
	records []record.Record, reason string, meta response.Metadata,
) response.Response {
	note := fmt.Sprintf(ModelFallbackNoteFmt, reason)
	meta.AddWarning(note)
	if meta.TokensUsed == nil {
		zero := 0
		meta.TokensUsed = &zero
	}

	resp := f.FormatData(records, meta)
	resp.Answer = note + " " + resp.Answer
	return resp
}

func (f *Formatter) paginate(records []record.Record, page int) ([]record.Summary, *response.Pagination) {
	total := len(records)
	if total <= f.pageSize {
		return summarize(records), nil
	}

	pages := (total + f.pageSize - 1) / f.pageSize
	page = max(1, min(page, pages))
	start := (page - 1) * f.pageSize
	end := min(start+f.pageSize, total)

	return summarize(records[start:end]), &response.Pagination{
		Paginated:  true,
		Total:      total,
		Page:       page,
		PageSize:   f.pageSize,
		TotalPages: pages,
	}
}

func summarize(records []record.Record) []record.Summary {
	out := make([]record.Summary, len(records))
	for i, r := range records {
		out[i] = r.Summarize()
	}
	return out
}

func references(records []record.Record) []response.Reference {
	out := make([]response.Reference, len(records))
	for i, r := range records {
		out[i] = response.Reference{
			ID:       r.ID,
			Title:    r.Title,
			Severity: r.Severity,
			Status:   r.Status,
			Date:     r.Date(),
		}
	}
	return out
}

func ensureTokens(meta *response.Metadata) {
	if meta.TokensUsed == nil {
		zero := 0
		meta.TokensUsed = &zero
	}
}

func dataAnswer(total int, pg *response.Pagination) string {
	switch {
	case total == 0:
		return NoRecordsAnswer
	case total == 1:
		return "Found 1 finding."
	case pg == nil:
		return fmt.Sprintf("Found %d findings.", total)
	default:
		first := (pg.Page-1)*pg.PageSize + 1
		last := min(pg.Page*pg.PageSize, total)
		return fmt.Sprintf("Found %d findings; showing %d-%d (page %d of %d).",
			total, first, last, pg.Page, pg.TotalPages)
	}
}
