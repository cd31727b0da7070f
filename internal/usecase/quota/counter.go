// Package quota enforces the per-user daily ceiling on model-backed queries.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDailyLimit is the model invocation ceiling per user per day.
	DefaultDailyLimit = 50
	// AnonymousUser owns the counter of unauthenticated callers.
	AnonymousUser = "anonymous"
)

// Decision is the outcome of one check-and-increment.
type Decision struct {
	Allowed bool
	Used    int
	Limit   int
	Day     string
}

// Remaining returns the invocations left today, or -1 when unlimited.
func (d Decision) Remaining() int {
	if d.Limit <= 0 {
		return -1
	}
	return max(0, d.Limit-d.Used)
}

// Counter atomically checks and increments a user's daily counter.
type Counter interface {
	Acquire(ctx context.Context, userID string) (Decision, error)
}

// MemoryCounter keeps counters in process memory. Counters are created on
// first use and all of them reset at the UTC day boundary.
type MemoryCounter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
	day    time.Time
	now    func() time.Time
}

// NewMemoryCounter creates an in-memory counter. A limit of 0 is unlimited.
func NewMemoryCounter(limit int, now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{
		limit:  limit,
		counts: make(map[string]int),
		day:    truncateToDay(now().UTC()),
		now:    now,
	}
}

// Acquire implements Counter. The check and the increment happen under one
// lock so concurrent callers cannot both pass at the ceiling.
func (m *MemoryCounter) Acquire(_ context.Context, userID string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetIfNeeded()
	d := Decision{Used: m.counts[userID], Limit: m.limit, Day: m.day.Format(dayLayout)}
	if m.limit > 0 && d.Used >= m.limit {
		return d, nil
	}
	m.counts[userID]++
	d.Used++
	d.Allowed = true
	return d, nil
}

// Peek reports the user's counter without incrementing it.
func (m *MemoryCounter) Peek(_ context.Context, userID string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetIfNeeded()
	d := Decision{Used: m.counts[userID], Limit: m.limit, Day: m.day.Format(dayLayout)}
	d.Allowed = m.limit <= 0 || d.Used < m.limit
	return d, nil
}

// Used returns the user's count for the current day.
func (m *MemoryCounter) Used(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfNeeded()
	return m.counts[userID]
}

func (m *MemoryCounter) resetIfNeeded() {
	today := truncateToDay(m.now().UTC())
	if today.After(m.day) {
		m.counts = make(map[string]int)
		m.day = today
	}
}

// Store persists counters with an atomic increment-if-below primitive.
type Store interface {
	IncrIfBelow(ctx context.Context, key string, limit int64, ttl time.Duration) (used int64, allowed bool, err error)
	Count(ctx context.Context, key string) (int64, error)
}

// StoreCounter keeps counters in a shared key-value store so the ceiling
// holds across instances. Keys expire two days after creation.
type StoreCounter struct {
	store  Store
	limit  int
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// NewStoreCounter creates a store-backed counter.
func NewStoreCounter(s Store, limit int, prefix string, now func() time.Time, logger *zap.Logger) *StoreCounter {
	if now == nil {
		now = time.Now
	}
	return &StoreCounter{store: s, limit: limit, prefix: prefix, now: now, logger: logger}
}

// Acquire implements Counter.
func (s *StoreCounter) Acquire(ctx context.Context, userID string) (Decision, error) {
	day := s.now().UTC().Format(dayLayout)
	d := Decision{Limit: s.limit, Day: day}

	if s.limit <= 0 {
		d.Allowed = true
		return d, nil
	}

	used, allowed, err := s.store.IncrIfBelow(ctx, s.Key(userID, day), int64(s.limit), keyTTL)
	if err != nil {
		return d, fmt.Errorf("quota acquire for %s: %w", userID, err)
	}
	d.Used = int(used)
	d.Allowed = allowed
	if !allowed {
		s.logger.Info("daily model quota reached",
			zap.String("user_id", userID),
			zap.Int("limit", s.limit),
		)
	}
	return d, nil
}

// Peek reports the user's counter without incrementing it.
func (s *StoreCounter) Peek(ctx context.Context, userID string) (Decision, error) {
	day := s.now().UTC().Format(dayLayout)
	d := Decision{Limit: s.limit, Day: day, Allowed: true}
	if s.limit <= 0 {
		return d, nil
	}

	used, err := s.store.Count(ctx, s.Key(userID, day))
	if err != nil {
		return d, fmt.Errorf("quota peek for %s: %w", userID, err)
	}
	d.Used = int(used)
	d.Allowed = d.Used < s.limit
	return d, nil
}

// Key returns the counter key of a user for a day.
func (s *StoreCounter) Key(userID, day string) string {
	return fmt.Sprintf("%squota:%s:%s", s.prefix, userID, day)
}

const (
	dayLayout = "2006-01-02"
	keyTTL    = 48 * time.Hour
)

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
