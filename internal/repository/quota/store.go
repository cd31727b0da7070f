// Package quota persists per-user daily quota counters.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/askdex/internal/db"
)

// store is the consumer interface for quota operations (ISP).
type store interface {
	IncrIfBelow(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Store implements the quota counter store on top of the DB's atomic
// increment-if-below script.
type Store struct {
	store    store
	backend  string
	duration *prometheus.HistogramVec
}

// New creates a quota store. duration is a histogram vec with labels
// backend, op and status; nil disables timing.
func New(s store, backend string, duration *prometheus.HistogramVec) *Store {
	return &Store{store: s, backend: backend, duration: duration}
}

// IncrIfBelow increments the counter at key unless it already reached limit.
func (s *Store) IncrIfBelow(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	start := time.Now()
	used, allowed, err := s.store.IncrIfBelow(ctx, key, limit, ttl)
	s.observe("quota_incr", start, err)
	if err != nil {
		return 0, false, fmt.Errorf("quota INCR %s: %w", key, err)
	}
	return used, allowed, nil
}

// Count returns the counter at key. A missing key counts as zero.
func (s *Store) Count(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		s.observe("quota_get", start, nil)
		return 0, nil
	}
	s.observe("quota_get", start, err)
	if err != nil {
		return 0, fmt.Errorf("quota GET %s: %w", key, err)
	}

	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("quota counter %s: %w", key, err)
	}
	return n, nil
}

func (s *Store) observe(op string, start time.Time, err error) {
	if s.duration == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.duration.WithLabelValues(s.backend, op, status).Observe(time.Since(start).Seconds())
}
