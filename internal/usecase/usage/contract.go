package usage

import (
	"context"

	"github.com/kailas-cloud/askdex/internal/usecase/quota"
)

// CounterReader provides read-only access to daily quota counters.
type CounterReader interface {
	Peek(ctx context.Context, userID string) (quota.Decision, error)
}
