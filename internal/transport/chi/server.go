package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/domain/query/response"
	"github.com/kailas-cloud/askdex/internal/domain/record"
	logpkg "github.com/kailas-cloud/askdex/internal/logger"
	healthuc "github.com/kailas-cloud/askdex/internal/usecase/health"
	"github.com/kailas-cloud/askdex/internal/usecase/route"
	"github.com/kailas-cloud/askdex/internal/usecase/usage"
)

const maxBodyBytes = 64 << 10

// queryRouter is the part of the router the HTTP API exposes.
type queryRouter interface {
	Route(ctx context.Context, text string, opts route.Options) (response.Response, error)
	ExecuteAs(ctx context.Context, text string, kind intent.Kind, opts route.Options) (response.Response, error)
	Classify(ctx context.Context, text string) (route.Classification, error)
	Lookup(ctx context.Context, id string) (record.Record, error)
}

type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

type usageReporter interface {
	GetReport(ctx context.Context, userID string) (usage.Report, error)
}

// Server serves the query API over chi.
type Server struct {
	router   queryRouter
	health   healthChecker
	usage    usageReporter
	validate *validator.Validate
	logger   *zap.Logger
}

// NewServer creates an HTTP API server. health can be nil.
func NewServer(router queryRouter, health healthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		router:   router,
		health:   health,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// WithUsage enables GET /v1/usage.
func (s *Server) WithUsage(u usageReporter) *Server {
	s.usage = u
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", s.Query)
		r.Post("/query/{kind}", s.QueryAs)
		r.Post("/classify", s.Classify)
		r.Get("/intent", s.Intent)
		r.Get("/records/{id}", s.GetRecord)
		if s.usage != nil {
			r.Get("/usage", s.Usage)
		}
	})
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.router.Route(r.Context(), req.Query, s.options(r, req))
	if err != nil {
		s.handleRouteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// QueryAs handles POST /v1/query/{kind}, bypassing classification.
func (s *Server) QueryAs(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	kind := intent.Kind(strings.ToLower(chi.URLParam(r, "kind")))
	resp, err := s.router.ExecuteAs(r.Context(), req.Query, kind, s.options(r, req))
	if err != nil {
		s.handleRouteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Classify handles POST /v1/classify.
func (s *Server) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.classify(w, r, req.Query)
}

// Intent handles GET /v1/intent?q=, returning the serialized intent only.
func (s *Server) Intent(w http.ResponseWriter, r *http.Request) {
	var q string
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "query parameter q is required")
		return
	}

	c, err := s.router.Classify(r.Context(), q)
	if err != nil {
		s.handleRouteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Intent)
}

// GetRecord handles GET /v1/records/{id}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.router.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleRouteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Usage handles GET /v1/usage for the calling user.
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	report, err := s.usage.GetReport(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		logpkg.FromContext(r.Context(), s.logger).Error("usage report failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, ErrorCodeStoreUnavailable, "usage is temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: string(healthuc.Healthy), Checks: map[string]string{}})
		return
	}

	report := s.health.Check(r.Context())
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request, text string) {
	c, err := s.router.Classify(r.Context(), text)
	if err != nil {
		s.handleRouteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{
		Intent:        c.Intent,
		EffectiveKind: c.Effective,
		Scores:        c.Scores,
		Rule:          c.Rule,
	})
}

func (s *Server) options(r *http.Request, req QueryRequest) route.Options {
	return route.Options{
		UserID:    UserFromContext(r.Context()),
		Page:      req.Page,
		SkipCache: req.SkipCache,
	}
}

// decode reads and validates a JSON body. It writes the error response and
// returns false when the body is unusable.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid JSON body")
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// errorStatus maps router error kinds onto HTTP statuses.
var errorStatus = map[route.ErrorKind]struct {
	status int
	code   ErrorCode
}{
	route.KindValidation:     {http.StatusBadRequest, ErrorCodeValidationFailed},
	route.KindNotFound:       {http.StatusNotFound, ErrorCodeNotFound},
	route.KindQuotaExceeded:  {http.StatusTooManyRequests, ErrorCodeQuotaExceeded},
	route.KindStore:          {http.StatusServiceUnavailable, ErrorCodeStoreUnavailable},
	route.KindModel:          {http.StatusBadGateway, ErrorCodeModelUnavailable},
	route.KindClassification: {http.StatusInternalServerError, ErrorCodeClassification},
}

func (s *Server) handleRouteError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context(), s.logger)

	rerr, ok := route.AsError(err)
	if !ok {
		log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
		return
	}

	m, ok := errorStatus[rerr.Kind]
	if !ok {
		m.status, m.code = http.StatusInternalServerError, ErrorCodeInternalError
	}
	if m.status >= http.StatusInternalServerError {
		log.Error("query failed", zap.String("kind", string(rerr.Kind)), zap.Error(err))
	} else {
		log.Warn("query rejected", zap.String("kind", string(rerr.Kind)), zap.Error(err))
	}
	writeJSON(w, m.status, ErrorResponse{Code: m.code, Message: rerr.Message, Hint: rerr.Hint})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
