// Package route classifies natural-language queries and runs them down the
// simple, complex or hybrid execution path.
package route

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/llm"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/domain/query/response"
	"github.com/kailas-cloud/askdex/internal/domain/record"
	"github.com/kailas-cloud/askdex/internal/logger"
	"github.com/kailas-cloud/askdex/internal/metrics"
	"github.com/kailas-cloud/askdex/internal/usecase/classify"
	"github.com/kailas-cloud/askdex/internal/usecase/format"
	"github.com/kailas-cloud/askdex/internal/usecase/quota"
	"github.com/kailas-cloud/askdex/internal/usecase/ragcontext"
)

const tracerName = "github.com/kailas-cloud/askdex/internal/usecase/route"

// Config holds routing thresholds, budgets and deadlines.
type Config struct {
	ConfidenceFloor        float64
	ClassificationFallback float64
	MaxQueryLength         int
	StoreTimeout           time.Duration
	ModelTimeout           time.Duration
	SimpleLimit            int
	CandidatePool          int
	ContextMaxRecords      int
	ContextMaxTokens       int
	ComplexMode            llm.Mode
	HybridMode             llm.Mode
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceFloor:        0.6,
		ClassificationFallback: 0.5,
		MaxQueryLength:         2000,
		StoreTimeout:           5 * time.Second,
		ModelTimeout:           30 * time.Second,
		SimpleLimit:            500,
		CandidatePool:          200,
		ContextMaxRecords:      ragcontext.DefaultMaxCount,
		ContextMaxTokens:       ragcontext.DefaultMaxTokens,
		ComplexMode:            llm.ModeHigh,
		HybridMode:             llm.ModeLow,
	}
}

// Deps are the collaborators of a Router. Model, Quota and Cache are optional.
type Deps struct {
	Classifier Classifier
	Extractor  Extractor
	Store      Store
	Context    *ragcontext.Builder
	Formatter  *format.Formatter
	Model      Generator
	Quota      quota.Counter
	Cache      IntentCache
	Logger     *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithIDGenerator overrides query ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(r *Router) { r.newID = fn }
}

// Router is the query execution engine. It is safe for concurrent use; all
// per-query state lives in an execution.
type Router struct {
	cfg        Config
	classifier Classifier
	extractor  Extractor
	store      Store
	model      Generator
	quota      quota.Counter
	cache      IntentCache
	context    *ragcontext.Builder
	formatter  *format.Formatter
	tracer     trace.Tracer
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string

	// onFinish observes the state trace of each execution. Tests only.
	onFinish func(trace []State)
}

// New creates a router.
func New(cfg Config, d Deps, opts ...Option) *Router {
	l := d.Logger
	if l == nil {
		l = zap.NewNop()
	}
	if d.Context == nil {
		d.Context = ragcontext.New(ragcontext.DefaultWeights())
	}
	if d.Formatter == nil {
		d.Formatter = format.New(0)
	}
	r := &Router{
		cfg:        cfg,
		classifier: d.Classifier,
		extractor:  d.Extractor,
		store:      d.Store,
		model:      d.Model,
		quota:      d.Quota,
		cache:      d.Cache,
		context:    d.Context,
		formatter:  d.Formatter,
		tracer:     otel.Tracer(tracerName),
		logger:     l,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConfidenceFloor returns the confidence below which queries run as complex.
func (r *Router) ConfidenceFloor() float64 { return r.cfg.ConfidenceFloor }

// Options are per-request settings.
type Options struct {
	// UserID scopes the daily quota and the intent cache. Empty is anonymous.
	UserID string
	// Page selects the page of a paginated data section, starting at 1.
	Page int
	// SkipCache bypasses the intent cache.
	SkipCache bool
}

func (o Options) user() string {
	if o.UserID == "" {
		return quota.AnonymousUser
	}
	return o.UserID
}

type outcome string

const (
	outcomeData          outcome = "data"
	outcomeAnalysis      outcome = "analysis"
	outcomeCombined      outcome = "combined"
	outcomeSkipped       outcome = "analysis_skipped"
	outcomeNoCandidates  outcome = "no_candidates"
	outcomeModelFallback outcome = "model_fallback"
)

// execution is the mutable state of one routed query.
type execution struct {
	machine  *machine
	queryID  string
	text     string
	opts     Options
	started  time.Time
	intent   intent.Intent
	kind     intent.Kind
	cached   bool
	partial  bool // filters came from a degraded extraction
	filters  filters.Filters
	records  []record.Record
	window   ragcontext.Window
	gen      llm.Generation
	modelErr error
	outcome  outcome
	warnings []string
	redirect *plan
}

func (x *execution) warn(msg string) { x.warnings = append(x.warnings, msg) }

// Route classifies text and executes it along the chosen path.
func (r *Router) Route(ctx context.Context, text string, opts Options) (response.Response, error) {
	x, err := r.begin(text, opts)
	if err != nil {
		return response.Response{}, err
	}
	ctx, span := r.startSpan(ctx, "route.Route", x)
	defer span.End()
	ctx = logger.With(ctx, r.logger, zap.String("query_id", x.queryID), zap.String("user_id", opts.user()))

	x.machine.to(StateClassifying)
	x.intent, x.cached = r.resolveIntent(ctx, x.text, opts)
	x.kind = x.intent.EffectiveKind(r.cfg.ConfidenceFloor)
	if x.kind != x.intent.Kind() {
		logger.FromContext(ctx, r.logger).Debug("confidence below floor, running as complex",
			zap.String("scored_kind", string(x.intent.Kind())),
			zap.Float64("confidence", x.intent.Confidence()),
		)
	}
	return r.execute(ctx, span, x)
}

// ExecuteAs runs text along an explicitly chosen path, skipping
// classification. Filters come from pattern extraction.
func (r *Router) ExecuteAs(ctx context.Context, text string, kind intent.Kind, opts Options) (response.Response, error) {
	if !kind.IsValid() {
		return response.Response{}, newError(KindValidation, fmt.Sprintf("Unknown query kind %q.", kind),
			"Use one of simple, complex or hybrid.", fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind))
	}
	x, err := r.begin(text, opts)
	if err != nil {
		return response.Response{}, err
	}
	ctx, span := r.startSpan(ctx, "route.ExecuteAs", x)
	defer span.End()
	ctx = logger.With(ctx, r.logger, zap.String("query_id", x.queryID), zap.String("user_id", opts.user()))

	x.machine.to(StateClassifying)
	x.intent = intent.New(kind, 1, r.patternFilters(ctx, x.text), nil)
	x.kind = kind
	return r.execute(ctx, span, x)
}

// Classification is a classifier decision together with the kind the router
// would execute.
type Classification struct {
	Intent    intent.Intent
	Effective intent.Kind
	Scores    classify.Scores
	Rule      string
}

// Classify scores text without executing it. The intent cache is not used.
func (r *Router) Classify(ctx context.Context, text string) (Classification, error) {
	text, err := r.normalizeInput(text)
	if err != nil {
		return Classification{}, err
	}
	d, err := r.decide(text)
	if err != nil {
		in := r.fallbackIntent(ctx, text, err)
		return Classification{Intent: in, Effective: in.EffectiveKind(r.cfg.ConfidenceFloor), Rule: "fallback"}, nil
	}
	return Classification{
		Intent:    d.Intent,
		Effective: d.Intent.EffectiveKind(r.cfg.ConfidenceFloor),
		Scores:    d.Scores,
		Rule:      d.Rule,
	}, nil
}

// Lookup fetches one finding by ID.
func (r *Router) Lookup(ctx context.Context, id string) (record.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return record.Record{}, newError(KindValidation, "A finding ID is required.", "Pass the ID shown in a result list.", domain.ErrInvalidQuery)
	}
	rec, err := callWithTimeout(ctx, r.cfg.StoreTimeout, func(ctx context.Context) (record.Record, error) {
		return r.store.GetByID(ctx, id)
	})
	if err != nil {
		return record.Record{}, storeError(storeTimeout(err))
	}
	return rec, nil
}

func (r *Router) begin(text string, opts Options) (*execution, error) {
	text, err := r.normalizeInput(text)
	if err != nil {
		return nil, err
	}
	return &execution{
		machine: newMachine(),
		queryID: r.newID(),
		text:    text,
		opts:    opts,
		started: r.now(),
	}, nil
}

func (r *Router) normalizeInput(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", newError(KindValidation, "The query is empty.",
			`Ask a question such as "open critical findings in 2024".`, domain.ErrInvalidQuery)
	}
	if r.cfg.MaxQueryLength > 0 && utf8.RuneCountInString(text) > r.cfg.MaxQueryLength {
		return "", newError(KindValidation,
			fmt.Sprintf("The query is longer than %d characters.", r.cfg.MaxQueryLength),
			"Shorten the question.", domain.ErrInvalidQuery)
	}
	return text, nil
}

func (r *Router) startSpan(ctx context.Context, name string, x *execution) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("query.id", x.queryID),
		attribute.Int("query.length", utf8.RuneCountInString(x.text)),
	))
}

// resolveIntent returns the cached or freshly classified intent. A failing
// classifier degrades to complex at the fallback confidence.
func (r *Router) resolveIntent(ctx context.Context, text string, opts Options) (intent.Intent, bool) {
	if r.cache != nil && !opts.SkipCache {
		if in, ok := r.cache.Get(ctx, opts.user(), text); ok {
			return in, true
		}
	}
	d, err := r.decide(text)
	if err != nil {
		return r.fallbackIntent(ctx, text, err), false
	}
	metrics.ClassificationsTotal.WithLabelValues(string(d.Intent.Kind())).Inc()
	logger.FromContext(ctx, r.logger).Debug("query classified",
		zap.String("kind", string(d.Intent.Kind())),
		zap.Float64("confidence", d.Intent.Confidence()),
		zap.String("rule", d.Rule),
		zap.Float64("score_simple", d.Scores.Simple),
		zap.Float64("score_complex", d.Scores.Complex),
		zap.Float64("score_hybrid", d.Scores.Hybrid),
	)
	return d.Intent, false
}

func (r *Router) decide(text string) (d classify.Decision, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("classifier panic: %v", p)
		}
	}()
	return r.classifier.Decide(text), nil
}

func (r *Router) fallbackIntent(ctx context.Context, text string, err error) intent.Intent {
	logger.FromContext(ctx, r.logger).Error("classification failed, running as complex", zap.Error(err))
	metrics.FallbacksTotal.WithLabelValues(string(intent.KindComplex), "classification_error").Inc()
	return intent.New(intent.KindComplex, r.cfg.ClassificationFallback, r.patternFilters(ctx, text), nil)
}

// patternFilters never fails; a panicking extractor yields no filters.
func (r *Router) patternFilters(ctx context.Context, text string) (f filters.Filters) {
	defer func() {
		if p := recover(); p != nil {
			logger.FromContext(ctx, r.logger).Error("pattern extraction panicked", zap.Any("panic", p))
			f = filters.Filters{}
		}
	}()
	return r.extractor.ExtractPattern(text)
}

func (r *Router) execute(ctx context.Context, span trace.Span, x *execution) (response.Response, error) {
	log := logger.FromContext(ctx, r.logger)
	x.filters = x.intent.Filters()
	span.SetAttributes(
		attribute.String("query.scored_kind", string(x.intent.Kind())),
		attribute.Float64("query.confidence", x.intent.Confidence()),
	)

	err := r.runPlans(ctx, x, r.planFor(x.kind))
	if err != nil {
		x.machine.to(StateFailed)
		r.finish(x, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("query failed", zap.String("kind", string(x.kind)), zap.Error(err))
		return response.Response{}, err
	}

	x.machine.to(StateFormatting)
	resp := r.format(x)
	x.machine.to(StateDone)

	if r.cache != nil && !x.cached && !x.partial && !x.opts.SkipCache {
		r.cache.Put(ctx, x.opts.user(), x.text, x.intent.WithFilters(x.filters))
	}
	r.finish(x, string(x.outcome))
	span.SetAttributes(
		attribute.String("query.kind", string(x.kind)),
		attribute.String("query.outcome", string(x.outcome)),
	)
	log.Info("query routed",
		zap.String("kind", string(x.kind)),
		zap.String("outcome", string(x.outcome)),
		zap.Int("records", resp.Metadata.RecordsAnalyzed),
		zap.Int64("duration_ms", resp.Metadata.ExecutionTimeMs),
	)
	return resp, nil
}

func (r *Router) finish(x *execution, outcome string) {
	metrics.QueriesTotal.WithLabelValues(string(x.kind), outcome).Inc()
	metrics.QueryDuration.WithLabelValues(string(x.kind)).Observe(r.now().Sub(x.started).Seconds())
	if r.onFinish != nil {
		r.onFinish(x.machine.trace)
	}
}

func (r *Router) format(x *execution) response.Response {
	meta := response.Metadata{
		QueryID:        x.queryID,
		Kind:           x.kind,
		ScoredKind:     x.intent.Kind(),
		Confidence:     x.intent.Confidence(),
		Filters:        x.filters,
		TriggerTerms:   x.intent.TriggerTerms(),
		ContextOmitted: x.window.Omitted,
		Cached:         x.cached,
		Warnings:       x.warnings,
	}

	var resp response.Response
	switch x.outcome {
	case outcomeAnalysis:
		meta.TokensUsed = tokens(x.gen)
		resp = r.formatter.FormatAnalysis(x.gen.Text, x.window.Included, meta)
	case outcomeCombined:
		meta.TokensUsed = tokens(x.gen)
		resp = r.formatter.FormatCombinedPage(x.records, x.window.Included, x.opts.Page, x.gen.Text, meta)
	case outcomeSkipped:
		resp = r.formatter.FormatAnalysisSkipped(meta)
	case outcomeNoCandidates:
		resp = r.formatter.FormatNoCandidates(meta)
	case outcomeModelFallback:
		shown := x.records
		if x.kind == intent.KindComplex {
			shown = x.window.Included
		}
		resp = r.formatter.FormatModelFallback(shown, modelReason(x.modelErr), meta)
	default:
		resp = r.formatter.FormatDataPage(x.records, x.opts.Page, meta)
	}
	resp.Metadata.ExecutionTimeMs = r.now().Sub(x.started).Milliseconds()
	return resp
}

func tokens(g llm.Generation) *int {
	n := g.Tokens()
	return &n
}
