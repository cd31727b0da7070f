package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound signals a missing finding record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrStoreUnavailable signals that the structured store cannot serve requests.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStoreTimeout signals that a store call exceeded its deadline.
	ErrStoreTimeout = errors.New("store timeout")

	// ErrModelUnavailable signals that the language model cannot be reached.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelQuotaExceeded signals that the model provider rejected the call for quota reasons.
	ErrModelQuotaExceeded = errors.New("model quota exceeded")
	// ErrModelMalformedResponse signals a model response that could not be used.
	ErrModelMalformedResponse = errors.New("model malformed response")
	// ErrModelTimeout signals that a model call exceeded its deadline.
	ErrModelTimeout = errors.New("model timeout")

	// ErrInvalidIntent signals a structurally invalid intent payload.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrInvalidQuery signals an unusable query text.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidKind signals an unknown query kind.
	ErrInvalidKind = errors.New("invalid query kind")
	// ErrDailyLimitReached signals an exhausted per-user daily model budget.
	ErrDailyLimitReached = errors.New("daily model limit reached")
	// ErrCacheMiss signals a missing cache entry.
	ErrCacheMiss = errors.New("cache miss")
)

// FieldError describes one filter value rejected by catalog validation.
type FieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}
