// Package intent holds the classified intent of a single query.
package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
)

// Intent is the immutable classification result for one query.
type Intent struct {
	kind         Kind
	confidence   float64
	filters      filters.Filters
	triggerTerms []string
}

// New creates an intent. Confidence is clamped to [0,1]; NaN becomes 0.
func New(kind Kind, confidence float64, f filters.Filters, triggerTerms []string) Intent {
	return Intent{
		kind:         kind,
		confidence:   Clamp(confidence),
		filters:      f.Normalize(),
		triggerTerms: slices.Clone(triggerTerms),
	}
}

// Kind returns the scored kind.
func (i Intent) Kind() Kind { return i.kind }

// Confidence returns the clamped confidence.
func (i Intent) Confidence() float64 { return i.confidence }

// Filters returns a copy of the extracted filters.
func (i Intent) Filters() filters.Filters { return i.filters.Clone() }

// RequiresModel reports whether the scored kind invokes the model.
func (i Intent) RequiresModel() bool { return i.kind.RequiresModel() }

// TriggerTerms returns a copy of the analytical trigger terms found in the query.
func (i Intent) TriggerTerms() []string { return slices.Clone(i.triggerTerms) }

// WithFilters returns a copy of the intent carrying different filters.
func (i Intent) WithFilters(f filters.Filters) Intent {
	return New(i.kind, i.confidence, f, i.triggerTerms)
}

// EffectiveKind returns the kind used for execution: below the floor the
// intent always runs as complex.
func (i Intent) EffectiveKind(floor float64) Kind {
	if i.confidence < floor {
		return KindComplex
	}
	return i.kind
}

// Equal reports whether two intents carry the same values.
func (i Intent) Equal(o Intent) bool {
	return i.kind == o.kind &&
		i.confidence == o.confidence &&
		i.filters.Equal(o.filters) &&
		slices.Equal(i.triggerTerms, o.triggerTerms)
}

// Clamp limits v to [0,1].
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type wire struct {
	Kind          Kind             `json:"kind"`
	Confidence    *float64         `json:"confidence"`
	Filters       *filters.Filters `json:"filters,omitempty"`
	RequiresModel bool             `json:"requires_model"`
	TriggerTerms  []string         `json:"trigger_terms,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (i Intent) MarshalJSON() ([]byte, error) {
	c := i.confidence
	f := i.filters
	return json.Marshal(wire{
		Kind:          i.kind,
		Confidence:    &c,
		Filters:       &f,
		RequiresModel: i.RequiresModel(),
		TriggerTerms:  i.triggerTerms,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The receiver is left untouched on error.
func (i *Intent) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Parse decodes and validates an intent payload. Any structural problem
// yields ErrInvalidIntent and a zero Intent.
func Parse(data []byte) (Intent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wire
	if err := dec.Decode(&w); err != nil {
		return Intent{}, fmt.Errorf("%w: %w", domain.ErrInvalidIntent, err)
	}
	if dec.More() {
		return Intent{}, fmt.Errorf("%w: trailing data", domain.ErrInvalidIntent)
	}
	switch w.Kind {
	case KindSimple, KindComplex, KindHybrid:
	default:
		return Intent{}, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidIntent, w.Kind)
	}
	if w.Confidence == nil {
		return Intent{}, fmt.Errorf("%w: confidence is required", domain.ErrInvalidIntent)
	}
	if math.IsNaN(*w.Confidence) || *w.Confidence < 0 || *w.Confidence > 1 {
		return Intent{}, fmt.Errorf("%w: confidence %v out of range", domain.ErrInvalidIntent, *w.Confidence)
	}
	if w.RequiresModel != w.Kind.RequiresModel() {
		return Intent{}, fmt.Errorf("%w: requires_model disagrees with kind", domain.ErrInvalidIntent)
	}

	var f filters.Filters
	if w.Filters != nil {
		f = *w.Filters
	}
	return New(w.Kind, *w.Confidence, f, w.TriggerTerms), nil
}

// IsInvalid reports whether err is an intent validation error.
func IsInvalid(err error) bool { return errors.Is(err, domain.ErrInvalidIntent) }
