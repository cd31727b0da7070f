package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/catalog"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
)

// ValidationResult is the outcome of checking filters against the catalog.
type ValidationResult struct {
	Valid     bool
	Errors    []domain.FieldError
	Sanitized filters.Filters
}

// Warnings renders the rejected values as user-facing messages.
func (r ValidationResult) Warnings() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, "ignored filter "+e.Error())
	}
	return out
}

// Validate checks every populated field against the catalog. Offending values
// are removed from the sanitized set and listed in Errors; the call never fails.
func (e *Extractor) Validate(f filters.Filters) ValidationResult {
	cat := e.catalog.Current()
	var (
		out  filters.Filters
		errs []domain.FieldError
	)
	reject := func(field catalog.Field, value, reason string) {
		errs = append(errs, domain.FieldError{Field: string(field), Value: value, Reason: reason})
	}

	if f.Year != nil {
		if *f.Year < catalog.MinYear || *f.Year > catalog.MaxYear {
			reject(catalog.FieldYear, strconv.Itoa(*f.Year), "outside supported range")
		} else {
			out.Year = filters.IntPtr(*f.Year)
		}
	}

	enum := func(field catalog.Field, v string) (string, bool) {
		if v == "" {
			return "", false
		}
		c, ok := cat.Canonical(field, v)
		if !ok {
			reject(field, v, "unknown value")
		}
		return c, ok
	}

	if c, ok := enum(catalog.FieldCategory, f.Category); ok {
		out.Category = c
	}
	if c, ok := enum(catalog.FieldDepartment, f.Department); ok {
		out.Department = c
	}
	for _, s := range f.Severities {
		if c, ok := enum(catalog.FieldSeverity, s); ok {
			out.Severities = append(out.Severities, c)
		}
	}
	for _, s := range f.Statuses {
		if c, ok := enum(catalog.FieldStatus, s); ok {
			out.Statuses = append(out.Statuses, c)
		}
	}

	for _, k := range f.Keywords {
		k = strings.TrimSpace(k)
		switch {
		case k == "":
		case len([]rune(k)) > catalog.MaxKeywordLength:
			reject(catalog.FieldKeywords, string([]rune(k)[:16])+"...", "too long")
		case len(out.Keywords) >= catalog.MaxKeywords:
			reject(catalog.FieldKeywords, k, "too many keywords")
		default:
			out.Keywords = append(out.Keywords, k)
		}
	}

	if f.DateRange != nil {
		out.DateRange = validateRange(*f.DateRange, reject)
	}

	return ValidationResult{
		Valid:     len(errs) == 0,
		Errors:    errs,
		Sanitized: out.Normalize(),
	}
}

func validateRange(dr filters.DateRange, reject func(catalog.Field, string, string)) *filters.DateRange {
	var (
		out        filters.DateRange
		start, end time.Time
	)
	parse := func(v string) (time.Time, bool) {
		if v == "" {
			return time.Time{}, false
		}
		t, err := time.Parse(filters.DateLayout, v)
		if err != nil {
			reject(catalog.FieldDateRange, v, "not a YYYY-MM-DD date")
			return time.Time{}, false
		}
		if t.Year() < catalog.MinYear || t.Year() > catalog.MaxYear {
			reject(catalog.FieldDateRange, v, "outside supported range")
			return time.Time{}, false
		}
		return t, true
	}

	var ok bool
	if start, ok = parse(dr.Start); ok {
		out.Start = dr.Start
	}
	if end, ok = parse(dr.End); ok {
		out.End = dr.End
	}
	if out.Start != "" && out.End != "" && start.After(end) {
		reject(catalog.FieldDateRange, dr.Start+".."+dr.End, "start is after end")
		return nil
	}
	if out.IsEmpty() {
		return nil
	}
	return &out
}
