// Package ragcontext selects and serializes a bounded set of records as
// language model context.
package ragcontext

import (
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
	"github.com/kailas-cloud/askdex/internal/domain/record"
)

// Defaults for selection and serialization.
const (
	DefaultMaxCount  = 20
	DefaultMaxTokens = 10000
)

// Weights are the additive relevance signals. Each signal is capped at its weight.
type Weights struct {
	Year       float64 `yaml:"year"`
	Category   float64 `yaml:"category"`
	Severity   float64 `yaml:"severity"`
	Status     float64 `yaml:"status"`
	Department float64 `yaml:"department"`
	Keywords   float64 `yaml:"keywords"`
}

// DefaultWeights returns the stock relevance weights.
func DefaultWeights() Weights {
	return Weights{Year: 20, Category: 20, Severity: 15, Status: 15, Department: 10, Keywords: 20}
}

// Candidate is a record with its relevance score. It only exists while
// selecting context.
type Candidate struct {
	Record record.Record
	Score  float64
}

// Builder scores, selects and serializes context records.
type Builder struct {
	weights Weights
}

// New creates a builder with the given weights.
func New(w Weights) *Builder {
	return &Builder{weights: w}
}

// Score returns the relevance of r to f.
func (b *Builder) Score(r record.Record, f filters.Filters) float64 {
	w := b.weights
	var s float64

	switch {
	case f.Year != nil:
		if r.EffectiveYear() == *f.Year {
			s += w.Year
		}
	case f.DateRange != nil:
		if inRange(r.IdentifiedAt, *f.DateRange) {
			s += w.Year
		}
	}
	if f.Category != "" && strings.EqualFold(r.Category, f.Category) {
		s += w.Category
	}
	if containsFold(f.Severities, r.Severity) {
		s += w.Severity
	}
	if containsFold(f.Statuses, r.Status) {
		s += w.Status
	}
	if f.Department != "" && r.Department != "" &&
		strings.Contains(strings.ToLower(r.Department), strings.ToLower(f.Department)) {
		s += w.Department
	}
	if len(f.Keywords) > 0 {
		haystack := strings.ToLower(r.Title + " " + r.Description + " " + r.Recommendation + " " + r.Location)
		matched := 0
		for _, k := range f.Keywords {
			if strings.Contains(haystack, strings.ToLower(k)) {
				matched++
			}
		}
		s += w.Keywords * float64(matched) / float64(len(f.Keywords))
	}
	return s
}

// Rank scores every candidate and orders them by descending score. Ties keep
// the input order.
func (b *Builder) Rank(candidates []record.Record, f filters.Filters) []Candidate {
	out := make([]Candidate, len(candidates))
	for i, r := range candidates {
		out[i] = Candidate{Record: r, Score: b.Score(r, f)}
	}
	slices.SortStableFunc(out, func(a, c Candidate) int {
		switch {
		case a.Score > c.Score:
			return -1
		case a.Score < c.Score:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Select returns at most maxCount candidates with the highest relevance.
// A non-positive maxCount uses DefaultMaxCount.
func (b *Builder) Select(candidates []record.Record, f filters.Filters, maxCount int) []record.Record {
	if maxCount <= 0 {
		maxCount = DefaultMaxCount
	}
	ranked := b.Rank(candidates, f)
	if len(ranked) > maxCount {
		ranked = ranked[:maxCount]
	}
	out := make([]record.Record, len(ranked))
	for i, c := range ranked {
		out[i] = c.Record
	}
	return out
}

func containsFold(set []string, v string) bool {
	if v == "" {
		return false
	}
	return slices.ContainsFunc(set, func(s string) bool { return strings.EqualFold(s, v) })
}

func inRange(t time.Time, dr filters.DateRange) bool {
	if t.IsZero() {
		return false
	}
	day := t.UTC().Format(filters.DateLayout)
	if dr.Start != "" && day < dr.Start {
		return false
	}
	if dr.End != "" && day > dr.End {
		return false
	}
	return true
}
