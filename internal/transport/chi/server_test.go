package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/domain/query/response"
	"github.com/kailas-cloud/askdex/internal/domain/record"
	"github.com/kailas-cloud/askdex/internal/usecase/classify"
	healthuc "github.com/kailas-cloud/askdex/internal/usecase/health"
	"github.com/kailas-cloud/askdex/internal/usecase/route"
	"github.com/kailas-cloud/askdex/internal/usecase/usage"
)

// --- Fakes ---

type fakeRouter struct {
	resp   response.Response
	class  route.Classification
	rec    record.Record
	err    error
	panics bool

	text string
	kind intent.Kind
	opts route.Options
	id   string
}

func (f *fakeRouter) Route(_ context.Context, text string, opts route.Options) (response.Response, error) {
	if f.panics {
		panic("boom")
	}
	f.text, f.opts = text, opts
	return f.resp, f.err
}

func (f *fakeRouter) ExecuteAs(_ context.Context, text string, kind intent.Kind, opts route.Options) (response.Response, error) {
	f.text, f.kind, f.opts = text, kind, opts
	return f.resp, f.err
}

func (f *fakeRouter) Classify(_ context.Context, text string) (route.Classification, error) {
	f.text = text
	return f.class, f.err
}

func (f *fakeRouter) Lookup(_ context.Context, id string) (record.Record, error) {
	f.id = id
	return f.rec, f.err
}

type fakeHealth struct {
	report healthuc.Report
}

func (f fakeHealth) Check(context.Context) healthuc.Report { return f.report }

type fakeUsage struct {
	report usage.Report
	err    error
	user   string
}

func (f *fakeUsage) GetReport(_ context.Context, userID string) (usage.Report, error) {
	f.user = userID
	f.report.UserID = userID
	return f.report, f.err
}

// --- Helpers ---

func newTestHandler(fr *fakeRouter, h healthChecker) http.Handler {
	keys := map[string]string{"k-alice": "alice"}
	return NewHandler(NewServer(fr, h, zap.NewNop()), keys, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer k-alice")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

// --- Tests ---

func TestQuery(t *testing.T) {
	fr := &fakeRouter{resp: response.Response{
		Kind:     intent.KindSimple,
		Answer:   "Found 1 finding.",
		Records:  []record.Summary{{ID: "F-1", Title: "Door lock", Severity: "High", Status: "Open", Date: "2024-03-01"}},
		Metadata: response.Metadata{QueryID: "q-1", Kind: intent.KindSimple, Confidence: 0.9},
	}}
	rr := do(t, newTestHandler(fr, nil), "POST", "/v1/query", `{"query":"open high findings","page":2,"skip_cache":true}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if fr.text != "open high findings" {
		t.Errorf("text = %q", fr.text)
	}
	if fr.opts != (route.Options{UserID: "alice", Page: 2, SkipCache: true}) {
		t.Errorf("opts = %+v", fr.opts)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	var got response.Response
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Metadata.QueryID != "q-1" || len(got.Records) != 1 || got.Records[0].ID != "F-1" {
		t.Errorf("response = %+v", got)
	}
}

func TestQuery_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode ErrorCode
		wantMsg  string
	}{
		{"malformed json", `{"query":`, ErrorCodeBadRequest, "invalid JSON body"},
		{"unknown field", `{"query":"x","user":"mallory"}`, ErrorCodeBadRequest, "invalid JSON body"},
		{"missing query", `{}`, ErrorCodeValidationFailed, "query is required"},
		{"too long", `{"query":"` + strings.Repeat("a", 2001) + `"}`, ErrorCodeValidationFailed, "at most 2000"},
		{"negative page", `{"query":"x","page":-1}`, ErrorCodeValidationFailed, "page is invalid"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fr := &fakeRouter{}
			rr := do(t, newTestHandler(fr, nil), "POST", "/v1/query", tc.body)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
			e := decodeError(t, rr)
			if e.Code != tc.wantCode || !strings.Contains(e.Message, tc.wantMsg) {
				t.Errorf("error = %+v", e)
			}
			if fr.text != "" {
				t.Error("router called for a rejected request")
			}
		})
	}
}

func TestQuery_ErrorMapping(t *testing.T) {
	tests := []struct {
		kind       route.ErrorKind
		wantStatus int
		wantCode   ErrorCode
	}{
		{route.KindValidation, http.StatusBadRequest, ErrorCodeValidationFailed},
		{route.KindNotFound, http.StatusNotFound, ErrorCodeNotFound},
		{route.KindQuotaExceeded, http.StatusTooManyRequests, ErrorCodeQuotaExceeded},
		{route.KindStore, http.StatusServiceUnavailable, ErrorCodeStoreUnavailable},
		{route.KindModel, http.StatusBadGateway, ErrorCodeModelUnavailable},
		{route.KindClassification, http.StatusInternalServerError, ErrorCodeClassification},
	}
	for _, tc := range tests {
		t.Run(string(tc.kind), func(t *testing.T) {
			fr := &fakeRouter{err: &route.Error{Kind: tc.kind, Message: "user message", Hint: "try again"}}
			rr := do(t, newTestHandler(fr, nil), "POST", "/v1/query", `{"query":"x"}`)

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			e := decodeError(t, rr)
			if e.Code != tc.wantCode || e.Message != "user message" || e.Hint != "try again" {
				t.Errorf("error = %+v", e)
			}
		})
	}
}

func TestQuery_RawErrorIsHidden(t *testing.T) {
	fr := &fakeRouter{err: errors.New("dial tcp 10.0.0.1:6379: connection refused")}
	rr := do(t, newTestHandler(fr, nil), "POST", "/v1/query", `{"query":"x"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "10.0.0.1") {
		t.Errorf("internal detail leaked: %s", rr.Body)
	}
}

func TestQueryAs(t *testing.T) {
	fr := &fakeRouter{resp: response.Response{Kind: intent.KindHybrid}}
	rr := do(t, newTestHandler(fr, nil), "POST", "/v1/query/Hybrid", `{"query":"list and summarize open findings"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if fr.kind != intent.KindHybrid || fr.opts.UserID != "alice" {
		t.Errorf("kind = %q, opts = %+v", fr.kind, fr.opts)
	}
}

func TestClassify(t *testing.T) {
	in := intent.New(intent.KindComplex, 0.8, filters.Filters{}, []string{"recommend"})
	fr := &fakeRouter{class: route.Classification{
		Intent:    in,
		Effective: intent.KindComplex,
		Scores:    classify.Scores{Complex: 0.8},
		Rule:      "trigger",
	}}
	rr := do(t, newTestHandler(fr, nil), "POST", "/v1/classify", `{"query":"recommend priorities"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var got ClassifyResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if !got.Intent.Equal(in) || got.EffectiveKind != intent.KindComplex || got.Rule != "trigger" || got.Scores.Complex != 0.8 {
		t.Errorf("classification = %+v", got)
	}
}

func TestIntent(t *testing.T) {
	in := intent.New(intent.KindSimple, 0.9, filters.Filters{}, nil)
	fr := &fakeRouter{class: route.Classification{Intent: in, Effective: intent.KindSimple}}
	h := newTestHandler(fr, nil)

	rr := do(t, h, "GET", "/v1/intent?q=open+findings", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if fr.text != "open findings" {
		t.Errorf("text = %q", fr.text)
	}
	got, err := intent.Parse(rr.Body.Bytes())
	if err != nil {
		t.Fatalf("parse intent: %v", err)
	}
	if !got.Equal(in) {
		t.Errorf("intent = %+v", got)
	}

	if rr := do(t, h, "GET", "/v1/intent", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d", rr.Code)
	}
}

func TestGetRecord(t *testing.T) {
	fr := &fakeRouter{rec: record.Record{
		ID: "F-7", Title: "Fire exit blocked", Severity: "Critical", Status: "Open",
		IdentifiedAt: time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC),
	}}
	rr := do(t, newTestHandler(fr, nil), "GET", "/v1/records/F-7", "")

	if rr.Code != http.StatusOK || fr.id != "F-7" {
		t.Fatalf("status = %d, id = %q", rr.Code, fr.id)
	}
	var got record.Record
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "Fire exit blocked" {
		t.Errorf("record = %+v", got)
	}

	fr.err = &route.Error{Kind: route.KindNotFound, Message: "No finding with that ID."}
	if rr := do(t, newTestHandler(fr, nil), "GET", "/v1/records/F-404", ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing record: status = %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		checker    healthChecker
		wantStatus int
		wantBody   string
	}{
		{"no checker", nil, http.StatusOK, "ok"},
		{"healthy", fakeHealth{healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"store": healthuc.CheckOK},
		}}, http.StatusOK, "ok"},
		{"degraded", fakeHealth{healthuc.Report{
			Status: healthuc.Degraded,
			Checks: map[string]healthuc.CheckResult{"store": healthuc.CheckOK, "model": healthuc.CheckError},
		}}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/health", http.NoBody)
			rr := httptest.NewRecorder()
			newTestHandler(&fakeRouter{}, tc.checker).ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			var got HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			if got.Status != tc.wantBody {
				t.Errorf("status = %q, want %q", got.Status, tc.wantBody)
			}
		})
	}
}

func TestRecoverer(t *testing.T) {
	rr := do(t, newTestHandler(&fakeRouter{panics: true}, nil), "POST", "/v1/query", `{"query":"x"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeInternalError {
		t.Errorf("code = %s", e.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	rr := do(t, newTestHandler(&fakeRouter{}, nil), "GET", "/v1/collections", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeNotFound {
		t.Errorf("code = %s", e.Code)
	}
}

func TestUsage(t *testing.T) {
	keys := map[string]string{"k-alice": "alice"}

	fu := &fakeUsage{report: usage.Report{Limit: 50, Used: 4, Remaining: 46}}
	h := NewHandler(NewServer(&fakeRouter{}, nil, zap.NewNop()).WithUsage(fu), keys, zap.NewNop())
	rr := do(t, h, "GET", "/v1/usage", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	var got usage.Report
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if fu.user != "alice" || got.Remaining != 46 {
		t.Errorf("user = %q, report = %+v", fu.user, got)
	}

	failing := &fakeUsage{err: errors.New("redis down")}
	h = NewHandler(NewServer(&fakeRouter{}, nil, zap.NewNop()).WithUsage(failing), keys, zap.NewNop())
	rr = do(t, h, "GET", "/v1/usage", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != ErrorCodeStoreUnavailable {
		t.Errorf("code = %s", e.Code)
	}

	rr = do(t, newTestHandler(&fakeRouter{}, nil), "GET", "/v1/usage", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("usage without reporter: status = %d", rr.Code)
	}
}
