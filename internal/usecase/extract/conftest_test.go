package extract

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kailas-cloud/askdex/internal/domain/catalog"
	"github.com/kailas-cloud/askdex/internal/domain/llm"
)

var fixedNow = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func newTestExtractor(opts ...Option) *Extractor {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(catalog.NewStatic(catalog.Default()), opts...)
}

type mockModel struct {
	fields map[string]any
	err    error
	delay  time.Duration
	calls  atomic.Int32
	schema llm.Schema
}

func (m *mockModel) ExtractStructured(ctx context.Context, _ string, schema llm.Schema) (map[string]any, error) {
	m.calls.Add(1)
	m.schema = schema
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.fields, nil
}
