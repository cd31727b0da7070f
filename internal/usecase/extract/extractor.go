// Package extract derives structured filters from free-text queries.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/catalog"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
	"github.com/kailas-cloud/askdex/internal/metrics"
)

// Extractor runs pattern, model-assisted and hybrid filter extraction.
type Extractor struct {
	catalog      catalog.Provider
	model        StructuredExtractor
	logger       *zap.Logger
	now          func() time.Time
	modelTimeout time.Duration
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithModel enables model-assisted extraction.
func WithModel(m StructuredExtractor) Option {
	return func(e *Extractor) { e.model = m }
}

// WithClock overrides the clock used for relative dates.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithModelTimeout bounds each model-assisted extraction call.
func WithModelTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.modelTimeout = d }
}

// New creates an extractor over the given catalog.
func New(cat catalog.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		catalog:      cat,
		logger:       zap.NewNop(),
		now:          time.Now,
		modelTimeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// HasModel reports whether model-assisted extraction is configured.
func (e *Extractor) HasModel() bool { return e.model != nil }

// Source tells which strategies produced a hybrid extraction.
type Source string

// Extraction sources.
const (
	SourcePattern Source = "pattern"
	SourceMerged  Source = "merged"
)

// Extraction is the result of a hybrid extraction.
type Extraction struct {
	Filters filters.Filters
	Source  Source
	// ModelErr is set when the model-assisted strategy failed and the
	// pattern result was used alone.
	ModelErr error
}

// ExtractModelAssisted delegates extraction to the language model using a
// fixed field schema.
func (e *Extractor) ExtractModelAssisted(ctx context.Context, text string) (filters.Filters, error) {
	if e.model == nil {
		return filters.Filters{}, fmt.Errorf("model-assisted extraction: %w", domain.ErrModelUnavailable)
	}

	if e.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.modelTimeout)
		defer cancel()
	}

	fields, err := e.model.ExtractStructured(ctx, text, Schema(e.catalog.Current()))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return filters.Filters{}, fmt.Errorf("model-assisted extraction: %w", domain.ErrModelTimeout)
		}
		return filters.Filters{}, fmt.Errorf("model-assisted extraction: %w", err)
	}
	return fromFields(e.catalog.Current(), fields), nil
}

// ExtractHybrid runs both strategies concurrently and merges them, model
// values taking precedence. A failed or empty model result falls back to the
// pattern result.
func (e *Extractor) ExtractHybrid(ctx context.Context, text string) Extraction {
	var (
		pattern filters.Filters
		model   filters.Filters
		g       errgroup.Group
	)

	g.Go(func() error {
		pattern = e.ExtractPattern(text)
		return nil
	})
	g.Go(func() error {
		var err error
		model, err = e.ExtractModelAssisted(ctx, text)
		return err
	})

	if err := g.Wait(); err != nil {
		e.logger.Warn("model-assisted extraction failed, using pattern filters", zap.Error(err))
		metrics.ExtractionFallbacksTotal.WithLabelValues("model_error").Inc()
		return Extraction{Filters: pattern, Source: SourcePattern, ModelErr: err}
	}
	if model.IsEmpty() {
		metrics.ExtractionFallbacksTotal.WithLabelValues("model_empty").Inc()
		return Extraction{Filters: pattern, Source: SourcePattern}
	}

	return Extraction{Filters: filters.Merge(pattern, model), Source: SourceMerged}
}
