// Package model decorates the language model client with tracing, logging
// and error normalization.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/llm"
	"github.com/kailas-cloud/askdex/internal/logger"
)

const tracerName = "github.com/kailas-cloud/askdex/internal/usecase/model"

// InstrumentedModel wraps Model with spans, logging and error normalization.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedModel struct {
	inner  Model
	name   string
	tracer trace.Tracer
	logger *zap.Logger
}

// NewInstrumented wraps a model.
func NewInstrumented(inner Model, name string, logger *zap.Logger) *InstrumentedModel {
	return &InstrumentedModel{
		inner:  inner,
		name:   name,
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
}

// Generate delegates to the inner model. Empty answers are reported as
// malformed responses.
func (m *InstrumentedModel) Generate(ctx context.Context, prompt string, mode llm.Mode) (llm.Generation, error) {
	ctx, span := m.tracer.Start(ctx, "model.Generate", trace.WithAttributes(
		attribute.String("model", m.name),
		attribute.String("mode", string(mode)),
		attribute.Int("prompt_chars", len(prompt)),
	))
	defer span.End()

	log := logger.FromContext(ctx, m.logger)
	start := time.Now()

	gen, err := m.inner.Generate(ctx, prompt, mode)
	if err == nil && strings.TrimSpace(gen.Text) == "" {
		err = fmt.Errorf("empty completion: %w", domain.ErrModelMalformedResponse)
	}
	duration := time.Since(start)

	if err != nil {
		err = normalize(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Model generation failed",
			zap.String("model", m.name),
			zap.String("mode", string(mode)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return llm.Generation{}, fmt.Errorf("generate: %w", err)
	}

	span.SetAttributes(attribute.Int("total_tokens", gen.Tokens()))
	log.Debug("Model generation completed",
		zap.String("model", m.name),
		zap.String("mode", string(mode)),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", gen.PromptTokens),
		zap.Int("total_tokens", gen.Tokens()),
	)
	return gen, nil
}

// ExtractStructured delegates to the inner model.
func (m *InstrumentedModel) ExtractStructured(
	ctx context.Context, text string, schema llm.Schema,
) (map[string]any, error) {
	ctx, span := m.tracer.Start(ctx, "model.ExtractStructured", trace.WithAttributes(
		attribute.String("model", m.name),
		attribute.String("schema", schema.Name),
	))
	defer span.End()

	log := logger.FromContext(ctx, m.logger)
	start := time.Now()

	fields, err := m.inner.ExtractStructured(ctx, text, schema)
	duration := time.Since(start)

	if err != nil {
		err = normalize(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("Structured extraction failed",
			zap.String("model", m.name),
			zap.String("schema", schema.Name),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("extract structured: %w", err)
	}

	log.Debug("Structured extraction completed",
		zap.String("model", m.name),
		zap.Duration("duration", duration),
		zap.Int("fields", len(fields)),
	)
	return fields, nil
}

// normalize maps context expiry onto the model timeout sentinel so callers
// see one error for both client and transport deadlines.
func normalize(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrModelTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrModelTimeout, err)
	}
	return err
}
