// Package record stores audit findings as Redis hashes behind an FT index.
package record

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/askdex/internal/db"
	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
	domrec "github.com/kailas-cloud/askdex/internal/domain/record"
)

// DefaultLimit caps queries that do not set a limit.
const DefaultLimit = 500

// store is the consumer interface for findings (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
}

// Repo implements the router's findings store over Redis.
type Repo struct {
	store    store
	prefix   string
	duration *prometheus.HistogramVec
}

// New creates a findings repository. Keys are prefix+"finding:"+id.
func New(s store, prefix string, duration *prometheus.HistogramVec) *Repo {
	return &Repo{store: s, prefix: prefix, duration: duration}
}

// EnsureIndex creates the findings index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	name := r.indexName()
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(name, r.keyPrefix())
	if err != nil {
		return fmt.Errorf("build index %s: %w", name, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// RebuildIndex drops and recreates the findings index so existing hashes are
// reindexed under the current schema. Stored findings are kept.
func (r *Repo) RebuildIndex(ctx context.Context) error {
	name := r.indexName()
	if err := r.store.DropIndex(ctx, name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	return r.EnsureIndex(ctx)
}

// Put stores findings, overwriting existing ones with the same ID.
func (r *Repo) Put(ctx context.Context, records ...domrec.Record) error {
	if len(records) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		items = append(items, db.HashSetItem{Key: r.key(rec.ID), Fields: buildHashFields(rec)})
	}

	start := time.Now()
	err := r.store.HSetMulti(ctx, items)
	r.observe("put", start, err)
	if err != nil {
		return fmt.Errorf("put %d findings: %w", len(records), mapStoreErr(err))
	}
	return nil
}

// Delete removes a finding.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("del %s: %w", id, mapStoreErr(err))
	}
	return nil
}

// GetByID returns one finding.
func (r *Repo) GetByID(ctx context.Context, id string) (domrec.Record, error) {
	start := time.Now()
	fields, err := r.store.HGetAll(ctx, r.key(id))
	if errors.Is(err, db.ErrKeyNotFound) {
		r.observe("get", start, nil)
		return domrec.Record{}, fmt.Errorf("finding %s: %w", id, domain.ErrRecordNotFound)
	}
	r.observe("get", start, err)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("get finding %s: %w", id, mapStoreErr(err))
	}
	return parseHashFields(id, fields), nil
}

// Query returns findings matching every populated filter, sorted and capped
// as requested. Keywords match any of the words in title, description or
// recommendation.
func (r *Repo) Query(ctx context.Context, q domrec.Query) ([]domrec.Record, error) {
	sq := &db.SearchQuery{
		Index:   r.indexName(),
		Clauses: buildClauses(q.Filters),
		Limit:   q.Limit,
	}
	if sq.Limit <= 0 {
		sq.Limit = DefaultLimit
	}
	if q.Sort != nil {
		sq.SortBy = sortField(q.Sort.Field)
		sq.Descending = q.Sort.Descending
	}

	start := time.Now()
	res, err := r.store.Search(ctx, sq)
	r.observe("query", start, err)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", mapStoreErr(err))
	}
	if res == nil {
		return nil, nil
	}

	out := make([]domrec.Record, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, parseHashFields(strings.TrimPrefix(e.Key, r.keyPrefix()), e.Fields))
	}
	return out, nil
}

// buildClauses translates filters into search clauses. Department matches
// the canonical value exactly; substring matching is left to ranking.
func buildClauses(f filters.Filters) []db.Clause {
	var out []db.Clause
	if f.Year != nil {
		y := float64(*f.Year)
		out = append(out, db.Range(fieldYear, &y, &y))
	}
	if f.DateRange != nil && !f.DateRange.IsEmpty() {
		lo, hi := dateBounds(*f.DateRange)
		if lo != nil || hi != nil {
			out = append(out, db.Range(fieldIdentifiedAt, lo, hi))
		}
	}
	if len(f.Severities) > 0 {
		out = append(out, db.Tag(fieldSeverity, f.Severities...))
	}
	if len(f.Statuses) > 0 {
		out = append(out, db.Tag(fieldStatus, f.Statuses...))
	}
	if f.Category != "" {
		out = append(out, db.Tag(fieldCategory, f.Category))
	}
	if f.Department != "" {
		out = append(out, db.Tag(fieldDepartment, f.Department))
	}
	if len(f.Keywords) > 0 {
		out = append(out, db.Text("", f.Keywords...))
	}
	return out
}

// dateBounds converts an inclusive day range to unix-second bounds. The end
// bound covers the whole final day.
func dateBounds(dr filters.DateRange) (lo, hi *float64) {
	if t, err := time.Parse(filters.DateLayout, dr.Start); err == nil {
		v := float64(t.UTC().Unix())
		lo = &v
	}
	if t, err := time.Parse(filters.DateLayout, dr.End); err == nil {
		v := float64(t.UTC().AddDate(0, 0, 1).Unix() - 1)
		hi = &v
	}
	return lo, hi
}

func mapStoreErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrStoreTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func (r *Repo) observe(op string, start time.Time, err error) {
	if r.duration == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.duration.WithLabelValues("redis", op, status).Observe(time.Since(start).Seconds())
}

func (r *Repo) keyPrefix() string { return r.prefix + "finding:" }

func (r *Repo) key(id string) string { return r.keyPrefix() + id }

func (r *Repo) indexName() string { return r.prefix + "findings:idx" }
