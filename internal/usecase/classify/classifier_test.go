package classify

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/askdex/internal/domain/catalog"
	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/usecase/extract"
)

func newTestClassifier() *Classifier {
	cat := catalog.NewStatic(catalog.Default())
	ext := extract.New(cat, extract.WithClock(func() time.Time {
		return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	}))
	return New(cat, ext, DefaultConfig())
}

func TestClassify_ScenarioSimpleLookup(t *testing.T) {
	c := newTestClassifier()

	in := c.Classify("Show Critical findings in Hotel from 2024")
	if in.Kind() != intent.KindSimple {
		t.Fatalf("kind = %s, want simple", in.Kind())
	}
	if in.Confidence() < 0.6 {
		t.Errorf("confidence = %v, want >= 0.6", in.Confidence())
	}
	if in.RequiresModel() {
		t.Error("simple intent must not require the model")
	}
	f := in.Filters()
	if f.Year == nil || *f.Year != 2024 || f.Category != "Hotel" || !slices.Equal(f.Severities, []string{"Critical"}) {
		t.Errorf("filters = %+v", f)
	}
}

func TestClassify_ScenarioTriggerTerms(t *testing.T) {
	c := newTestClassifier()

	in := c.Classify("recommend priorities based on 2024 findings trends")
	if in.Kind() != intent.KindComplex {
		t.Fatalf("kind = %s, want complex", in.Kind())
	}
	terms := in.TriggerTerms()
	for _, want := range []string{"recommend", "trends"} {
		if !slices.Contains(terms, want) {
			t.Errorf("trigger terms %v missing %q", terms, want)
		}
	}
	if !in.RequiresModel() {
		t.Error("complex intent must require the model")
	}
}

func TestClassify_FilterOnlyQueriesAreSimple(t *testing.T) {
	c := newTestClassifier()
	cat := catalog.Default()

	var queries []string
	for _, f := range catalog.EnumFields {
		for _, v := range cat.Values(f) {
			queries = append(queries, v, strings.ToLower(v)+" findings")
		}
	}
	for _, term := range cat.Terms() {
		queries = append(queries, term)
	}
	queries = append(queries,
		"2024",
		"critical open hotel findings 2023",
		"High severity issues in Housekeeping last year",
		"list resolved minor findings in the warehouse",
		"how many open findings in finance this year",
		"Closed Medium restaurant findings 2021",
	)

	for _, q := range queries {
		if got := c.Classify(q); got.Kind() != intent.KindSimple {
			t.Errorf("Classify(%q) = %s (%.2f), want simple", q, got.Kind(), got.Confidence())
		}
	}
}

func TestClassify_TriggerTermsAreComplex(t *testing.T) {
	c := newTestClassifier()

	queries := []string{
		"recommend fixes",
		"analyze critical findings in hotels",
		"why are so many housekeeping findings still open",
		"what patterns show up in 2024 retail findings",
		"compare 2023 and 2024 severity",
		"list critical findings and compare them with last year",
		"show open findings with a summary and recommendations",
		"Analyse the root cause of high severity security findings",
		"what are the trends",
	}
	for _, q := range queries {
		got := c.Classify(q)
		if got.Kind() != intent.KindComplex {
			t.Errorf("Classify(%q) = %s, want complex", q, got.Kind())
		}
		if len(got.TriggerTerms()) == 0 {
			t.Errorf("Classify(%q) has no trigger terms", q)
		}
	}
}

func TestClassify_Hybrid(t *testing.T) {
	c := newTestClassifier()

	queries := []string{
		"list open findings in finance and explain them",
		"show critical hotel findings with a short summary",
		"get 2024 security findings, then summarize what they mean",
	}
	for _, q := range queries {
		d := c.Decide(q)
		if d.Intent.Kind() != intent.KindHybrid {
			t.Errorf("Decide(%q) = %s via %s %+v, want hybrid", q, d.Intent.Kind(), d.Rule, d.Scores)
		}
		if d.Intent.Confidence() < 0.6 {
			t.Errorf("Decide(%q) confidence = %v", q, d.Intent.Confidence())
		}
	}
}

func TestClassify_Unclassifiable(t *testing.T) {
	c := newTestClassifier()

	for _, q := range []string{"", "   ", "hello there", "zxqv"} {
		d := c.Decide(q)
		if d.Intent.Kind() != intent.KindComplex || d.Intent.Confidence() != 0.4 {
			t.Errorf("Decide(%q) = %s@%v, want complex@0.4", q, d.Intent.Kind(), d.Intent.Confidence())
		}
		if d.Rule != "default" {
			t.Errorf("Decide(%q) rule = %s", q, d.Rule)
		}
	}
}

func TestClassify_ConfidenceAlwaysInRange(t *testing.T) {
	c := newTestClassifier()

	queries := []string{
		"show list display get find fetch view critical high medium low open closed resolved 2024 2023 hotel retail office",
		"why why why analyze recommend compare patterns trends insights predict correlate root cause",
		"show critical findings and explain with a summary along with your assessment what does this mean",
		strings.Repeat("critical ", 200),
		"x",
	}
	for _, q := range queries {
		got := c.Classify(q).Confidence()
		if got < 0 || got > 1 {
			t.Errorf("Classify(%.30q) confidence = %v out of [0,1]", q, got)
		}
	}
}

func TestClassify_ComplexWithoutTrigger(t *testing.T) {
	c := newTestClassifier()

	d := c.Decide("explain what should be improved")
	if d.Intent.Kind() != intent.KindComplex {
		t.Fatalf("kind = %s via %s", d.Intent.Kind(), d.Rule)
	}
	if len(d.Intent.TriggerTerms()) != 0 {
		t.Errorf("unexpected trigger terms %v", d.Intent.TriggerTerms())
	}
}

func TestClassify_RebuildsOnCatalogChange(t *testing.T) {
	ext, err := catalog.Default().WithAliases(map[catalog.Field]map[string][]string{
		catalog.FieldCategory: {"Hotel": {"motel"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	p := &swapProvider{c: catalog.Default()}
	c := New(p, extract.New(p), DefaultConfig())

	if got := c.Classify("motel"); got.Kind() != intent.KindComplex {
		t.Fatalf("before swap: %s", got.Kind())
	}
	p.c = ext
	if got := c.Classify("motel"); got.Kind() != intent.KindSimple {
		t.Fatalf("after swap: %s", got.Kind())
	}
}

type swapProvider struct{ c *catalog.Catalog }

func (s *swapProvider) Current() *catalog.Catalog { return s.c }

func TestScore(t *testing.T) {
	ps := buildPatterns(catalog.Default())

	if got, _ := score(ps.simple, ""); got != 0 {
		t.Errorf("empty text score = %v", got)
	}

	// One pattern covering the whole query: 0.6*(1/3) + 0.4*1.
	got, _ := score(ps.simple, "critical")
	if want := 0.2 + 0.4; abs(got-want) > 1e-9 {
		t.Errorf("score = %v, want %v", got, want)
	}

	// Saturation: three or more matched patterns give the full count term.
	got, _ = score(ps.simple, "show critical open hotel finance 2024")
	if got < 0.6 || got > 1 {
		t.Errorf("saturated score = %v", got)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
