package route

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/askdex/internal/domain"
)

// ErrorKind classifies every failure that leaves the router.
type ErrorKind string

// Error kinds.
const (
	KindClassification ErrorKind = "classification"
	KindStore          ErrorKind = "store"
	KindModel          ErrorKind = "model"
	KindQuotaExceeded  ErrorKind = "quota_exceeded"
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
)

// Error is the only error type returned by the router. Message is safe to
// show to users; Hint names the next step they can take.
type Error struct {
	Kind    ErrorKind
	Message string
	Hint    string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// AsError extracts a router error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func newError(kind ErrorKind, msg, hint string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Hint: hint, err: err}
}

// translate maps a step failure onto the taxonomy. Store failures never
// expose transport detail in the message.
func translate(kind ErrorKind, err error) *Error {
	if e, ok := AsError(err); ok {
		return e
	}
	switch kind {
	case KindStore:
		return storeError(err)
	case KindModel:
		return newError(KindModel, "The analysis service failed.", "Retry in a moment.", err)
	case KindQuotaExceeded:
		return newError(KindQuotaExceeded, "The daily analysis limit was reached.",
			"Ask for a list of findings instead, or try again after 00:00 UTC.", err)
	case KindValidation:
		return newError(KindValidation, "The query could not be understood.", "Rephrase the question.", err)
	default:
		return newError(KindClassification, "The query could not be classified.", "Use a simpler phrasing.", err)
	}
}

func storeError(err error) *Error {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return newError(KindNotFound, "The requested finding does not exist.",
			"Check the finding ID and try again.", err)
	case errors.Is(err, domain.ErrStoreTimeout):
		return newError(KindStore, "The findings store took too long to respond.",
			"Retry in a moment, or narrow the query with a year, category or severity.", err)
	default:
		return newError(KindStore, "The findings store is unavailable right now.",
			"Retry in a few seconds.", err)
	}
}

// modelReason is the user-facing reason for a degraded model call.
func modelReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrModelTimeout):
		return "the analysis timed out"
	case errors.Is(err, domain.ErrModelQuotaExceeded):
		return "the model provider quota is exhausted"
	case errors.Is(err, domain.ErrModelMalformedResponse):
		return "the model returned an unusable answer"
	default:
		return "the model is unavailable"
	}
}

// modelErrorLabel is the metrics label of a degraded model call.
func modelErrorLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrModelTimeout):
		return "model_timeout"
	case errors.Is(err, domain.ErrModelQuotaExceeded):
		return "model_quota"
	case errors.Is(err, domain.ErrModelMalformedResponse):
		return "model_malformed"
	default:
		return "model_unavailable"
	}
}
