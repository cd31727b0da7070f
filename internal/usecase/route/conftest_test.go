package route

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/llm"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/domain/record"
	"github.com/kailas-cloud/askdex/internal/usecase/classify"
	"github.com/kailas-cloud/askdex/internal/usecase/extract"
	"github.com/kailas-cloud/askdex/internal/usecase/quota"
)

// --- Fakes ---

type fakeClassifier struct {
	mu       sync.Mutex
	decision classify.Decision
	panics   bool
	calls    int
}

func (f *fakeClassifier) Decide(string) classify.Decision {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panics {
		panic("scoring table corrupted")
	}
	return f.decision
}

func classifiedAs(kind intent.Kind, confidence float64, fs filters.Filters) *fakeClassifier {
	return &fakeClassifier{decision: classify.Decision{Intent: intent.New(kind, confidence, fs, nil), Rule: "test"}}
}

type fakeExtractor struct {
	pattern filters.Filters
	hybrid  *extract.Extraction
}

func (f *fakeExtractor) ExtractPattern(string) filters.Filters { return f.pattern }

func (f *fakeExtractor) ExtractHybrid(context.Context, string) extract.Extraction {
	return *f.hybrid
}

func (f *fakeExtractor) Validate(fs filters.Filters) extract.ValidationResult {
	return extract.ValidationResult{Valid: true, Sanitized: fs}
}

func (f *fakeExtractor) HasModel() bool { return f.hybrid != nil }

type fakeStore struct {
	mu      sync.Mutex
	records []record.Record
	err     error
	delay   time.Duration
	queries []record.Query
}

func (f *fakeStore) Query(ctx context.Context, q record.Query) ([]record.Record, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (record.Record, error) {
	if f.err != nil {
		return record.Record{}, f.err
	}
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return record.Record{}, fmt.Errorf("finding %s: %w", id, domain.ErrRecordNotFound)
}

type fakeModel struct {
	mu      sync.Mutex
	gen     llm.Generation
	err     error
	delay   time.Duration
	prompts []string
	modes   []llm.Mode
}

func (f *fakeModel) Generate(ctx context.Context, prompt string, mode llm.Mode) (llm.Generation, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.modes = append(f.modes, mode)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return llm.Generation{}, ctx.Err()
		}
	}
	if f.err != nil {
		return llm.Generation{}, f.err
	}
	return f.gen, nil
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeCounter struct {
	decision quota.Decision
	err      error
	calls    int
}

func (f *fakeCounter) Acquire(context.Context, string) (quota.Decision, error) {
	f.calls++
	return f.decision, f.err
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]intent.Intent
}

func (f *fakeCache) Get(_ context.Context, userID, q string) (intent.Intent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.entries[userID+"|"+q]
	return in, ok
}

func (f *fakeCache) Put(_ context.Context, userID, q string, in intent.Intent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries == nil {
		f.entries = map[string]intent.Intent{}
	}
	f.entries[userID+"|"+q] = in
}

// --- Helpers ---

func makeRecords(n int) []record.Record {
	out := make([]record.Record, n)
	for i := range out {
		out[i] = record.Record{
			ID:           fmt.Sprintf("F-%d", 100+i),
			Title:        fmt.Sprintf("Fire door %d propped open", i),
			Description:  "Fire door found wedged open during walkthrough.",
			Severity:     "High",
			Status:       "Open",
			Category:     "Hotel",
			Department:   "Facilities",
			Year:         2024,
			IdentifiedAt: time.Date(2024, time.March, 1+i%28, 0, 0, 0, 0, time.UTC),
		}
	}
	return out
}

type harness struct {
	classifier *fakeClassifier
	extractor  *fakeExtractor
	store      *fakeStore
	model      *fakeModel
	counter    *fakeCounter
	cache      *fakeCache
	trace      []State
}

func defaultHarness() *harness {
	return &harness{
		classifier: classifiedAs(intent.KindSimple, 0.9, filters.Filters{Year: filters.IntPtr(2024)}),
		extractor:  &fakeExtractor{pattern: filters.Filters{Year: filters.IntPtr(2024)}},
		store:      &fakeStore{records: makeRecords(3)},
		model:      &fakeModel{gen: llm.Generation{Text: "Doors are the recurring issue [F-100].", TotalTokens: 120}},
	}
}

func (h *harness) router(t *testing.T, mutate ...func(*Config, *Deps)) *Router {
	t.Helper()
	cfg := DefaultConfig()
	d := Deps{
		Classifier: h.classifier,
		Extractor:  h.extractor,
		Store:      h.store,
	}
	if h.model != nil {
		d.Model = h.model
	}
	if h.counter != nil {
		d.Quota = h.counter
	}
	if h.cache != nil {
		d.Cache = h.cache
	}
	for _, m := range mutate {
		m(&cfg, &d)
	}
	r := New(cfg, d, WithIDGenerator(func() string { return "q-1" }))
	r.onFinish = func(tr []State) { h.trace = append([]State(nil), tr...) }
	return r
}
