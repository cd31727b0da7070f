package intent

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
)

func TestNew_ClampsConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
		{math.NaN(), 0},
		{math.Inf(1), 1},
	}
	for _, tc := range tests {
		got := New(KindSimple, tc.in, filters.Filters{}, nil).Confidence()
		if got != tc.want {
			t.Errorf("New(confidence=%v).Confidence() = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEffectiveKind(t *testing.T) {
	tests := []struct {
		kind       Kind
		confidence float64
		want       Kind
	}{
		{KindSimple, 0.59, KindComplex},
		{KindSimple, 0.6, KindSimple},
		{KindHybrid, 0.2, KindComplex},
		{KindHybrid, 0.9, KindHybrid},
		{KindComplex, 0.1, KindComplex},
	}
	for _, tc := range tests {
		got := New(tc.kind, tc.confidence, filters.Filters{}, nil).EffectiveKind(0.6)
		if got != tc.want {
			t.Errorf("%s@%v: EffectiveKind = %s, want %s", tc.kind, tc.confidence, got, tc.want)
		}
	}
}

func TestIntent_IsImmutable(t *testing.T) {
	terms := []string{"why"}
	f := filters.Filters{Year: filters.IntPtr(2024), Severities: []string{"High"}}
	in := New(KindComplex, 0.8, f, terms)

	terms[0] = "changed"
	*f.Year = 1999
	f.Severities[0] = "Low"

	if in.TriggerTerms()[0] != "why" {
		t.Error("trigger terms alias the constructor input")
	}
	got := in.Filters()
	if *got.Year != 2024 || got.Severities[0] != "High" {
		t.Error("filters alias the constructor input")
	}

	got.Severities[0] = "Medium"
	if in.Filters().Severities[0] != "High" {
		t.Error("Filters() exposes internal state")
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	cases := []Intent{
		New(KindSimple, 0.87, filters.Filters{
			Year:       filters.IntPtr(2024),
			Category:   "Hotel",
			Severities: []string{"Critical"},
		}, nil),
		New(KindComplex, 0.73, filters.Filters{
			Keywords:  []string{"priorities"},
			DateRange: &filters.DateRange{Start: "2024-01-01"},
		}, []string{"recommend", "trends"}),
		New(KindHybrid, 0.1, filters.Filters{}, nil),
	}

	for _, want := range cases {
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got, err := Parse(data)
		if err != nil {
			t.Fatalf("parse %s: %v", data, err)
		}
		if !got.Equal(want) {
			t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
		}

		var viaUnmarshal Intent
		if err := json.Unmarshal(data, &viaUnmarshal); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !viaUnmarshal.Equal(want) {
			t.Errorf("json.Unmarshal mismatch for %s", data)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	payloads := map[string]string{
		"not json":                `{`,
		"unknown kind":            `{"kind":"lookup","confidence":0.5,"requires_model":false}`,
		"upper-case kind":         `{"kind":"SIMPLE","confidence":0.5,"requires_model":false}`,
		"missing kind":            `{"confidence":0.5,"requires_model":false}`,
		"missing confidence":      `{"kind":"simple","requires_model":false}`,
		"confidence above one":    `{"kind":"simple","confidence":1.5,"requires_model":false}`,
		"negative confidence":     `{"kind":"simple","confidence":-0.1,"requires_model":false}`,
		"requires_model mismatch": `{"kind":"simple","confidence":0.5,"requires_model":true}`,
		"unknown field":           `{"kind":"simple","confidence":0.5,"requires_model":false,"extra":1}`,
		"unknown filter field":    `{"kind":"simple","confidence":0.5,"requires_model":false,"filters":{"colour":"red"}}`,
		"wrong filter type":       `{"kind":"simple","confidence":0.5,"requires_model":false,"filters":{"year":"2024"}}`,
		"trailing data":           `{"kind":"simple","confidence":0.5,"requires_model":false} {}`,
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			got, err := Parse([]byte(payload))
			if !errors.Is(err, domain.ErrInvalidIntent) {
				t.Fatalf("expected ErrInvalidIntent, got %v", err)
			}
			if !IsInvalid(err) {
				t.Error("IsInvalid = false")
			}
			if !got.Equal(Intent{}) {
				t.Errorf("expected zero intent, got %+v", got)
			}
		})
	}
}

func TestUnmarshal_LeavesReceiverOnError(t *testing.T) {
	in := New(KindSimple, 0.9, filters.Filters{}, nil)
	if err := json.Unmarshal([]byte(`{"kind":"bogus"}`), &in); err == nil {
		t.Fatal("expected error")
	}
	if in.Kind() != KindSimple || in.Confidence() != 0.9 {
		t.Errorf("receiver modified: %+v", in)
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"simple", "Complex", " hybrid "} {
		if _, err := ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q): %v", s, err)
		}
	}
	if _, err := ParseKind("fast"); !errors.Is(err, domain.ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
	if KindSimple.RequiresModel() || !KindHybrid.RequiresModel() || !KindComplex.RequiresModel() {
		t.Error("RequiresModel mismatch")
	}
}
