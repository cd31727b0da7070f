// Package sqlrecord stores audit findings in SQLite or PostgreSQL.
package sqlrecord

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/askdex/internal/domain"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
	domrec "github.com/kailas-cloud/askdex/internal/domain/record"
)

//go:embed schema.sql
var schema string

// DefaultLimit caps queries that do not set a limit.
const DefaultLimit = 500

const columns = "id, title, description, severity, status, category, department, location, year, identified_at, recommendation"

// Repo implements the router's findings store over database/sql.
type Repo struct {
	db       *sql.DB
	dialect  Dialect
	duration *prometheus.HistogramVec
}

// Open connects to the database and applies the schema.
func Open(ctx context.Context, dialect Dialect, dsn string, duration *prometheus.HistogramVec) (*Repo, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	r := &Repo{db: db, dialect: dialect, duration: duration}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) migrate(ctx context.Context) error {
	if r.dialect == SQLite {
		if _, err := r.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("pragma: %w", err)
		}
	}
	// One statement per Exec for both drivers.
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (r *Repo) Close() error { return r.db.Close() }

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return mapStoreErr(err)
	}
	return nil
}

// Put upserts findings in one transaction.
func (r *Repo) Put(ctx context.Context, records ...domrec.Record) (err error) {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
	}

	start := time.Now()
	defer func() { r.observe("put", start, err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", mapStoreErr(err))
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO findings
		(id, title, description, severity, severity_rank, status, category, department, location, year, identified_at, recommendation)
		VALUES (`+strings.Join(r.dialect.placeholders(12), ", ")+`)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title, description = excluded.description,
			severity = excluded.severity, severity_rank = excluded.severity_rank,
			status = excluded.status, category = excluded.category,
			department = excluded.department, location = excluded.location,
			year = excluded.year, identified_at = excluded.identified_at,
			recommendation = excluded.recommendation`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", mapStoreErr(err))
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err = stmt.ExecContext(ctx,
			rec.ID, rec.Title, rec.Description,
			rec.Severity, domrec.SeverityRank(rec.Severity),
			rec.Status, rec.Category, rec.Department, rec.Location,
			rec.EffectiveYear(), rec.IdentifiedAt.UTC().Unix(), rec.Recommendation,
		)
		if err != nil {
			return fmt.Errorf("upsert finding %s: %w", rec.ID, mapStoreErr(err))
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapStoreErr(err))
	}
	return nil
}

// GetByID returns one finding.
func (r *Repo) GetByID(ctx context.Context, id string) (domrec.Record, error) {
	a := &args{dialect: r.dialect}
	q := "SELECT " + columns + " FROM findings WHERE id = " + a.add(id)

	start := time.Now()
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, a.values...))
	if errors.Is(err, sql.ErrNoRows) {
		r.observe("get", start, nil)
		return domrec.Record{}, fmt.Errorf("finding %s: %w", id, domain.ErrRecordNotFound)
	}
	r.observe("get", start, err)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("get finding %s: %w", id, mapStoreErr(err))
	}
	return rec, nil
}

// Query returns findings matching every populated filter. Matching is case
// insensitive; keywords match any word in title, description or
// recommendation.
func (r *Repo) Query(ctx context.Context, q domrec.Query) (out []domrec.Record, err error) {
	a := &args{dialect: r.dialect}
	where := buildWhere(a, q.Filters)

	var sb strings.Builder
	sb.WriteString("SELECT " + columns + " FROM findings")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if q.Sort != nil {
		sb.WriteString(" ORDER BY " + sortColumn(q.Sort.Field))
		if q.Sort.Descending {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", id")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	sb.WriteString(" LIMIT " + a.add(limit))

	start := time.Now()
	defer func() { r.observe("query", start, err) }()

	rows, err := r.db.QueryContext(ctx, sb.String(), a.values...)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", mapStoreErr(err))
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan finding: %w", mapStoreErr(err))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", mapStoreErr(err))
	}
	return out, nil
}

func buildWhere(a *args, f filters.Filters) []string {
	var where []string
	if f.Year != nil {
		where = append(where, "year = "+a.add(*f.Year))
	}
	if f.DateRange != nil {
		if t, err := time.Parse(filters.DateLayout, f.DateRange.Start); err == nil {
			where = append(where, "identified_at >= "+a.add(t.UTC().Unix()))
		}
		if t, err := time.Parse(filters.DateLayout, f.DateRange.End); err == nil {
			where = append(where, "identified_at < "+a.add(t.UTC().AddDate(0, 0, 1).Unix()))
		}
	}
	if len(f.Severities) > 0 {
		where = append(where, a.in("LOWER(severity)", lowerAll(f.Severities)))
	}
	if len(f.Statuses) > 0 {
		where = append(where, a.in("LOWER(status)", lowerAll(f.Statuses)))
	}
	if f.Category != "" {
		where = append(where, "LOWER(category) = "+a.add(strings.ToLower(f.Category)))
	}
	if f.Department != "" {
		where = append(where, "LOWER(department) = "+a.add(strings.ToLower(f.Department)))
	}
	if len(f.Keywords) > 0 {
		ors := make([]string, 0, len(f.Keywords))
		for _, kw := range f.Keywords {
			like := "%" + strings.ToLower(kw) + "%"
			for _, col := range []string{"title", "description", "recommendation"} {
				ors = append(ors, "LOWER("+col+") LIKE "+a.add(like))
			}
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	return where
}

func sortColumn(f domrec.SortField) string {
	switch f {
	case domrec.SortBySeverity:
		return "severity_rank"
	case domrec.SortByYear:
		return "year"
	default:
		return "identified_at"
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (domrec.Record, error) {
	var (
		r  domrec.Record
		ts int64
	)
	err := s.Scan(&r.ID, &r.Title, &r.Description, &r.Severity, &r.Status, &r.Category,
		&r.Department, &r.Location, &r.Year, &ts, &r.Recommendation)
	if err != nil {
		return domrec.Record{}, err
	}
	r.IdentifiedAt = time.Unix(ts, 0).UTC()
	return r, nil
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
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
	r.duration.WithLabelValues(string(r.dialect), op, status).Observe(time.Since(start).Seconds())
}
