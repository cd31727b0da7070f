package askdex

import "github.com/kailas-cloud/askdex/internal/usecase/route"

// Error is the error returned by query operations. Use AsError to inspect
// its Kind and user-facing Hint.
type Error = route.Error

// ErrorKind classifies an Error.
type ErrorKind = route.ErrorKind

// Error kinds.
const (
	ErrorClassification = route.KindClassification
	ErrorStore          = route.KindStore
	ErrorModel          = route.KindModel
	ErrorQuotaExceeded  = route.KindQuotaExceeded
	ErrorValidation     = route.KindValidation
	ErrorNotFound       = route.KindNotFound
)

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	return route.AsError(err)
}
