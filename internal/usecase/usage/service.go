// Package usage reports per-user consumption of the daily analytical quota.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/askdex/internal/usecase/quota"
)

// Report is one user's quota state for the current UTC day.
type Report struct {
	UserID    string    `json:"user_id"`
	Day       string    `json:"day"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Unlimited bool      `json:"unlimited"`
	Exhausted bool      `json:"exhausted"`
	ResetsAt  time.Time `json:"resets_at"`
}

// Service handles usage reporting.
type Service struct {
	counter CounterReader
	now     func() time.Time
}

// New creates a Service. now can be nil.
func New(counter CounterReader, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{counter: counter, now: now}
}

// GetReport builds the usage report of userID. Empty is anonymous.
func (s *Service) GetReport(ctx context.Context, userID string) (Report, error) {
	if userID == "" {
		userID = quota.AnonymousUser
	}
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	d, err := s.counter.Peek(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("usage for %s: %w", userID, err)
	}

	r := Report{
		UserID:    userID,
		Day:       d.Day,
		Limit:     d.Limit,
		Used:      d.Used,
		Remaining: d.Remaining(),
		Unlimited: d.Limit <= 0,
		ResetsAt:  dayStart.Add(24 * time.Hour),
	}
	r.Exhausted = !r.Unlimited && r.Remaining == 0
	return r, nil
}
