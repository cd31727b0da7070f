package askdex

import (
	"github.com/kailas-cloud/askdex/internal/app"
	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
	"github.com/kailas-cloud/askdex/internal/domain/query/response"
	"github.com/kailas-cloud/askdex/internal/domain/record"
	healthuc "github.com/kailas-cloud/askdex/internal/usecase/health"
	"github.com/kailas-cloud/askdex/internal/usecase/route"
	"github.com/kailas-cloud/askdex/internal/usecase/usage"
)

type (
	// Response is the answer to one question.
	Response = response.Response
	// Record is one audit finding.
	Record = record.Record
	// Kind is the execution path a question takes.
	Kind = intent.Kind
	// Intent is a classified question with its extracted filters.
	Intent = intent.Intent
	// Classification is the routing decision for a question, without execution.
	Classification = route.Classification
	// UsageReport is a user's daily analytical quota state.
	UsageReport = usage.Report
	// HealthReport is the result of a dependency check.
	HealthReport = healthuc.Report
	// Store is a findings store the client can query and seed.
	Store = app.RecordStore
	// Model is a language model used for analysis and filter extraction.
	Model = app.Model
)

// Execution kinds.
const (
	KindSimple  = intent.KindSimple
	KindComplex = intent.KindComplex
	KindHybrid  = intent.KindHybrid
)

// QueryOption configures a single Route or ExecuteAs call.
type QueryOption func(*route.Options)

// ForUser attributes the query to a user for quota accounting and caching.
func ForUser(id string) QueryOption {
	return func(o *route.Options) { o.UserID = id }
}

// Page selects a page of a paginated data answer, starting at 1.
func Page(n int) QueryOption {
	return func(o *route.Options) { o.Page = n }
}

// SkipCache bypasses the intent cache.
func SkipCache() QueryOption {
	return func(o *route.Options) { o.SkipCache = true }
}

func queryOptions(opts []QueryOption) route.Options {
	var o route.Options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
