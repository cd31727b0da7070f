package route

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// errSkip ends a plan early and goes straight to formatting.
var errSkip = errors.New("route: skip to formatting")

// step is one stage of an execution plan. A step with no fallback aborts the
// plan with a routed error of its kind.
type step struct {
	name     string
	state    State
	kind     ErrorKind
	run      func(ctx context.Context, x *execution) error
	fallback func(ctx context.Context, x *execution, err error)
}

type plan struct {
	name  string
	steps []step
}

// runPlans executes p and any plan a fallback redirects to.
func (r *Router) runPlans(ctx context.Context, x *execution, p plan) error {
	for {
		next, err := r.runPlan(ctx, x, p)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		p = *next
	}
}

func (r *Router) runPlan(ctx context.Context, x *execution, p plan) (*plan, error) {
	for _, s := range p.steps {
		x.machine.to(s.state)

		sctx, span := r.tracer.Start(ctx, "route."+s.name,
			trace.WithAttributes(
				attribute.String("route.plan", p.name),
				attribute.String("route.state", string(s.state)),
			),
		)
		err := s.run(sctx, x)
		if err != nil && !errors.Is(err, errSkip) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		switch {
		case err == nil:
			continue
		case errors.Is(err, errSkip):
			return nil, nil
		case s.fallback != nil:
			s.fallback(ctx, x, err)
			if x.redirect != nil {
				next := x.redirect
				x.redirect = nil
				return next, nil
			}
			return nil, nil
		default:
			return nil, translate(s.kind, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return nil, nil
}

// callWithTimeout runs fn with a deadline of d. The caller stops waiting when
// the deadline passes even if fn ignores its context. A non-positive d only
// honors the parent context.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case res := <-ch:
		return res.v, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
