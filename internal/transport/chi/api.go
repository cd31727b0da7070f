package chi

import (
	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/usecase/classify"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeNotFound         ErrorCode = "not_found"
	ErrorCodeQuotaExceeded    ErrorCode = "quota_exceeded"
	ErrorCodeStoreUnavailable ErrorCode = "store_unavailable"
	ErrorCodeModelUnavailable ErrorCode = "model_unavailable"
	ErrorCodeClassification   ErrorCode = "classification_failed"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
}

// QueryRequest is the body of POST /v1/query and POST /v1/query/{kind}.
type QueryRequest struct {
	Query     string `json:"query" validate:"required,max=2000"`
	Page      int    `json:"page,omitempty" validate:"gte=0"`
	SkipCache bool   `json:"skip_cache,omitempty"`
}

// ClassifyRequest is the body of POST /v1/classify.
type ClassifyRequest struct {
	Query string `json:"query" validate:"required,max=2000"`
}

// ClassifyResponse reports a classifier decision and the kind the router
// would execute for it.
type ClassifyResponse struct {
	Intent        intent.Intent   `json:"intent"`
	EffectiveKind intent.Kind     `json:"effective_kind"`
	Scores        classify.Scores `json:"scores"`
	Rule          string          `json:"rule"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
