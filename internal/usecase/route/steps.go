package route

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/llm"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/domain/record"
	"github.com/kailas-cloud/askdex/internal/logger"
	"github.com/kailas-cloud/askdex/internal/metrics"
	"github.com/kailas-cloud/askdex/internal/usecase/extract"
)

// User-facing warnings.
const (
	QuotaExceededWarningFmt = "Daily limit of %d analytical queries reached; showing matching findings instead. The limit resets at 00:00 UTC."
	QuotaUnverifiedWarning  = "The daily analysis quota could not be checked; showing matching findings instead."
	ExtractionWarning       = "Model-assisted filter extraction was unavailable; filters were read from the query text only."
	ContextTooSmallWarning  = "The context budget is too small to include any finding; analysis was skipped."
)

var byDateDesc = record.Sort{Field: record.SortByDate, Descending: true}

func (r *Router) planFor(kind intent.Kind) plan {
	switch kind {
	case intent.KindComplex:
		return r.complexPlan()
	case intent.KindHybrid:
		return r.hybridPlan()
	default:
		return r.simplePlan()
	}
}

func (r *Router) simplePlan() plan {
	return plan{name: "simple", steps: []step{
		{name: "validate", state: StateClassifying, kind: KindValidation, run: r.validateFilters},
		{name: "query", state: StateExecutingSimple, kind: KindStore, run: r.queryRecords},
	}}
}

func (r *Router) complexPlan() plan {
	return plan{name: "complex", steps: []step{
		{name: "quota", state: StateClassifying, kind: KindQuotaExceeded, run: r.acquireQuota, fallback: r.downgradeToSimple},
		{name: "extract", state: StateClassifying, kind: KindValidation, run: r.extractFilters},
		{name: "retrieve", state: StateBuildingContext, kind: KindStore, run: r.retrieveCandidates},
		{name: "context", state: StateBuildingContext, kind: KindValidation, run: r.buildContext},
		{name: "generate", state: StateInvokingModel, kind: KindModel, run: r.generate, fallback: r.modelFallback},
	}}
}

func (r *Router) hybridPlan() plan {
	return plan{name: "hybrid", steps: []step{
		{name: "quota", state: StateClassifying, kind: KindQuotaExceeded, run: r.acquireQuota, fallback: r.downgradeToSimple},
		{name: "extract", state: StateClassifying, kind: KindValidation, run: r.extractFilters},
		{name: "query", state: StateExecutingSimple, kind: KindStore, run: r.queryRecords},
		{name: "context", state: StateBuildingContext, kind: KindValidation, run: r.buildContext},
		{name: "generate", state: StateInvokingModel, kind: KindModel, run: r.generate, fallback: r.modelFallback},
	}}
}

// acquireQuota charges one model-backed query against the user's daily
// counter before any model call is made.
func (r *Router) acquireQuota(ctx context.Context, x *execution) error {
	if r.quota == nil || r.model == nil {
		return nil
	}
	d, err := r.quota.Acquire(ctx, x.opts.user())
	if err != nil {
		metrics.QuotaDecisionsTotal.WithLabelValues("error").Inc()
		return err
	}
	if !d.Allowed {
		metrics.QuotaDecisionsTotal.WithLabelValues("exceeded").Inc()
		return &quotaDenied{limit: d.Limit}
	}
	metrics.QuotaDecisionsTotal.WithLabelValues("allowed").Inc()
	return nil
}

type quotaDenied struct{ limit int }

func (e *quotaDenied) Error() string {
	return fmt.Sprintf("daily limit of %d reached", e.limit)
}

func (e *quotaDenied) Unwrap() error { return domain.ErrDailyLimitReached }

// downgradeToSimple answers a model-backed query from the store alone when
// the quota denies the model call or cannot be checked.
func (r *Router) downgradeToSimple(ctx context.Context, x *execution, err error) {
	log := logger.FromContext(ctx, r.logger)
	reason := "quota_error"
	var denied *quotaDenied
	if errors.As(err, &denied) {
		reason = "quota_exceeded"
		x.warn(fmt.Sprintf(QuotaExceededWarningFmt, denied.limit))
		log.Info("daily quota reached, downgrading to simple", zap.String("kind", string(x.kind)))
	} else {
		x.warn(QuotaUnverifiedWarning)
		log.Error("quota check failed, downgrading to simple", zap.Error(err))
	}
	metrics.FallbacksTotal.WithLabelValues(string(x.kind), reason).Inc()

	x.kind = intent.KindSimple
	x.partial = true
	next := r.simplePlan()
	x.redirect = &next
}

func (r *Router) validateFilters(_ context.Context, x *execution) error {
	res := r.extractor.Validate(x.filters)
	for _, w := range res.Warnings() {
		x.warn(w)
	}
	x.filters = res.Sanitized
	return nil
}

// extractFilters enriches pattern filters with model-assisted extraction.
// Cached intents already carry resolved filters.
func (r *Router) extractFilters(ctx context.Context, x *execution) error {
	if !x.cached && r.extractor.HasModel() {
		ext, err := callWithTimeout(ctx, r.cfg.ModelTimeout, func(ctx context.Context) (extract.Extraction, error) {
			return r.extractor.ExtractHybrid(ctx, x.text), nil
		})
		if err != nil {
			ext = extract.Extraction{Filters: x.filters, Source: extract.SourcePattern, ModelErr: modelTimeout(err)}
		}
		if ext.ModelErr != nil {
			x.warn(ExtractionWarning)
			x.partial = true
		}
		x.filters = ext.Filters
	}
	return r.validateFilters(ctx, x)
}

// queryRecords answers from the store on the simple and hybrid paths.
// Keywords reorder the matches but never exclude them.
func (r *Router) queryRecords(ctx context.Context, x *execution) error {
	f := x.filters.Clone()
	f.Keywords = nil
	recs, err := r.query(ctx, record.Query{Filters: f, Sort: &byDateDesc, Limit: r.cfg.SimpleLimit})
	if err != nil {
		return err
	}
	x.records = r.rankByKeywords(recs, x.filters.Keywords)
	if x.kind == intent.KindSimple {
		x.outcome = outcomeData
		return nil
	}
	if len(recs) == 0 {
		x.outcome = outcomeSkipped
		return errSkip
	}
	return nil
}

// rankByKeywords moves records matching more keywords to the front. Ties keep
// the store order.
func (r *Router) rankByKeywords(recs []record.Record, keywords []string) []record.Record {
	if len(keywords) == 0 || len(recs) < 2 {
		return recs
	}
	ranked := r.context.Rank(recs, filters.Filters{Keywords: keywords})
	out := make([]record.Record, len(ranked))
	for i, c := range ranked {
		out[i] = c.Record
	}
	return out
}

// retrieveCandidates fetches the complex candidate pool. Keywords only rank
// candidates, they never exclude them.
func (r *Router) retrieveCandidates(ctx context.Context, x *execution) error {
	f := x.filters.Clone()
	f.Keywords = nil
	recs, err := r.query(ctx, record.Query{Filters: f, Sort: &byDateDesc, Limit: r.cfg.CandidatePool})
	if err != nil {
		return err
	}
	x.records = recs
	if len(recs) == 0 {
		x.outcome = outcomeNoCandidates
		return errSkip
	}
	return nil
}

func (r *Router) buildContext(_ context.Context, x *execution) error {
	selected := r.context.Select(x.records, x.filters, r.cfg.ContextMaxRecords)
	x.window = r.context.Build(selected, r.cfg.ContextMaxTokens)

	metrics.ContextTokens.Observe(float64(x.window.EstimatedTokens))
	if x.window.Truncated() {
		metrics.ContextTruncationsTotal.Inc()
	}
	if len(x.window.Included) == 0 {
		x.warn(ContextTooSmallWarning)
		if x.kind == intent.KindComplex {
			x.records = selected
		}
		x.outcome = outcomeData
		return errSkip
	}
	return nil
}

func (r *Router) generate(ctx context.Context, x *execution) error {
	if r.model == nil {
		return domain.ErrModelUnavailable
	}
	mode := r.cfg.ComplexMode
	x.outcome = outcomeAnalysis
	if x.kind == intent.KindHybrid {
		mode = r.cfg.HybridMode
		x.outcome = outcomeCombined
	}
	prompt := buildPrompt(x.kind, x.text, x.window.Text)

	gen, err := callWithTimeout(ctx, r.cfg.ModelTimeout, func(ctx context.Context) (llm.Generation, error) {
		return r.model.Generate(ctx, prompt, mode)
	})
	if err != nil {
		return modelTimeout(err)
	}
	x.gen = gen
	return nil
}

// modelFallback degrades a failed generation to the retrieved records.
func (r *Router) modelFallback(ctx context.Context, x *execution, err error) {
	x.modelErr = err
	x.outcome = outcomeModelFallback
	metrics.FallbacksTotal.WithLabelValues(string(x.kind), modelErrorLabel(err)).Inc()
	logger.FromContext(ctx, r.logger).Warn("model call failed, returning records",
		zap.String("kind", string(x.kind)),
		zap.Error(err),
	)
}

func (r *Router) query(ctx context.Context, q record.Query) ([]record.Record, error) {
	recs, err := callWithTimeout(ctx, r.cfg.StoreTimeout, func(ctx context.Context) ([]record.Record, error) {
		return r.store.Query(ctx, q)
	})
	if err != nil {
		return nil, storeTimeout(err)
	}
	return recs, nil
}

func storeTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrStoreTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrStoreTimeout, err)
	}
	return err
}

func modelTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrModelTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrModelTimeout, err)
	}
	return err
}
