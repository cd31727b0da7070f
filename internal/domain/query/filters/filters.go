// Package filters defines the sparse structured filter set extracted from a query.
package filters

import (
	"slices"
	"sort"
	"strings"
)

// DateLayout is the wire format of date range bounds.
const DateLayout = "2006-01-02"

// DateRange is an inclusive identification date range. Either bound may be empty.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// IsEmpty reports whether neither bound is set.
func (d DateRange) IsEmpty() bool { return d.Start == "" && d.End == "" }

// Filters is a sparse filter set. Zero values mean "not constrained".
// Severities and Statuses are kept sorted and deduplicated.
type Filters struct {
	Year       *int       `json:"year,omitempty"`
	Category   string     `json:"category,omitempty"`
	Severities []string   `json:"severity_levels,omitempty"`
	Statuses   []string   `json:"status_levels,omitempty"`
	Department string     `json:"department,omitempty"`
	Keywords   []string   `json:"keywords,omitempty"`
	DateRange  *DateRange `json:"date_range,omitempty"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// IsEmpty reports whether no field is populated.
func (f Filters) IsEmpty() bool {
	return f.Year == nil &&
		f.Category == "" &&
		len(f.Severities) == 0 &&
		len(f.Statuses) == 0 &&
		f.Department == "" &&
		len(f.Keywords) == 0 &&
		(f.DateRange == nil || f.DateRange.IsEmpty())
}

// Count returns the number of populated fields.
func (f Filters) Count() int {
	n := 0
	if f.Year != nil {
		n++
	}
	if f.Category != "" {
		n++
	}
	if len(f.Severities) > 0 {
		n++
	}
	if len(f.Statuses) > 0 {
		n++
	}
	if f.Department != "" {
		n++
	}
	if len(f.Keywords) > 0 {
		n++
	}
	if f.DateRange != nil && !f.DateRange.IsEmpty() {
		n++
	}
	return n
}

// Clone returns a deep copy.
func (f Filters) Clone() Filters {
	out := f
	if f.Year != nil {
		out.Year = IntPtr(*f.Year)
	}
	out.Severities = slices.Clone(f.Severities)
	out.Statuses = slices.Clone(f.Statuses)
	out.Keywords = slices.Clone(f.Keywords)
	if f.DateRange != nil {
		dr := *f.DateRange
		out.DateRange = &dr
	}
	return out
}

// Normalize sorts and deduplicates the set-valued fields and deduplicates
// keywords case-insensitively, keeping first occurrence order.
func (f Filters) Normalize() Filters {
	out := f.Clone()
	out.Severities = Set(out.Severities...)
	out.Statuses = Set(out.Statuses...)
	out.Keywords = dedupeFold(out.Keywords)
	if out.DateRange != nil && out.DateRange.IsEmpty() {
		out.DateRange = nil
	}
	return out
}

// Equal reports whether two filter sets constrain the same values.
func (f Filters) Equal(o Filters) bool {
	a, b := f.Normalize(), o.Normalize()
	if (a.Year == nil) != (b.Year == nil) || (a.Year != nil && *a.Year != *b.Year) {
		return false
	}
	if (a.DateRange == nil) != (b.DateRange == nil) || (a.DateRange != nil && *a.DateRange != *b.DateRange) {
		return false
	}
	return a.Category == b.Category &&
		a.Department == b.Department &&
		slices.Equal(a.Severities, b.Severities) &&
		slices.Equal(a.Statuses, b.Statuses) &&
		slices.Equal(a.Keywords, b.Keywords)
}

// Merge combines pattern-extracted and model-extracted filters.
// Scalars: the model value wins when set, otherwise the pattern value is kept.
// Lists: union of both after deduplication.
func Merge(pattern, model Filters) Filters {
	out := pattern.Clone()

	if model.Year != nil {
		out.Year = IntPtr(*model.Year)
	}
	if model.Category != "" {
		out.Category = model.Category
	}
	if model.Department != "" {
		out.Department = model.Department
	}
	if model.DateRange != nil && !model.DateRange.IsEmpty() {
		dr := *model.DateRange
		if dr.Start == "" && out.DateRange != nil {
			dr.Start = out.DateRange.Start
		}
		if dr.End == "" && out.DateRange != nil {
			dr.End = out.DateRange.End
		}
		out.DateRange = &dr
	}

	out.Severities = append(out.Severities, model.Severities...)
	out.Statuses = append(out.Statuses, model.Statuses...)
	out.Keywords = append(out.Keywords, model.Keywords...)

	return out.Normalize()
}

// Set returns the values sorted and deduplicated, dropping empty strings.
func Set(values ...string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func dedupeFold(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		k := strings.ToLower(strings.TrimSpace(v))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
