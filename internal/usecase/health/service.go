// Package health reports the availability of the store and the model.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the model is down; data queries still work.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is down.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultTimeout bounds each component check.
const DefaultTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store   StorePinger
	model   ModelChecker
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Service. model can be nil when no provider is configured.
func New(store StorePinger, model ModelChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, model: model, timeout: DefaultTimeout, logger: logger}
}

// WithTimeout overrides the per-check deadline.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Check runs the component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, 2)
	)
	record := func(name string, err error) {
		res := CheckOK
		if err != nil {
			res = CheckError
			s.logger.Warn("health check failed", zap.String("component", name), zap.Error(err))
		}
		mu.Lock()
		checks[name] = res
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		record("store", s.run(ctx, s.store.Ping))
		return nil
	})
	if s.model != nil {
		g.Go(func() error {
			record("model", s.run(ctx, s.model.HealthCheck))
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	switch {
	case checks["store"] == CheckError:
		status = Unhealthy
	case checks["model"] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}
