package record

import (
	"strconv"
	"strings"
	"time"

	domrec "github.com/kailas-cloud/askdex/internal/domain/record"
)

// Hash field names.
const (
	fieldID             = "id"
	fieldTitle          = "title"
	fieldDescription    = "description"
	fieldSeverity       = "severity"
	fieldSeverityRank   = "severity_rank"
	fieldStatus         = "status"
	fieldCategory       = "category"
	fieldDepartment     = "department"
	fieldLocation       = "location"
	fieldYear           = "year"
	fieldIdentifiedAt   = "identified_at"
	fieldRecommendation = "recommendation"
)

// buildHashFields flattens a finding for HSET. Dates are stored as unix
// seconds so they can be range-filtered and sorted.
func buildHashFields(r domrec.Record) map[string]string {
	m := map[string]string{
		fieldID:           r.ID,
		fieldTitle:        r.Title,
		fieldDescription:  r.Description,
		fieldSeverity:     r.Severity,
		fieldSeverityRank: strconv.Itoa(domrec.SeverityRank(r.Severity)),
		fieldStatus:       r.Status,
		fieldCategory:     r.Category,
		fieldDepartment:   r.Department,
		fieldYear:         strconv.Itoa(r.EffectiveYear()),
		fieldIdentifiedAt: strconv.FormatInt(r.IdentifiedAt.UTC().Unix(), 10),
	}
	if r.Location != "" {
		m[fieldLocation] = r.Location
	}
	if r.Recommendation != "" {
		m[fieldRecommendation] = r.Recommendation
	}
	return m
}

// parseHashFields rebuilds a finding from a hash. Unparseable numerics are
// left zero.
func parseHashFields(id string, m map[string]string) domrec.Record {
	r := domrec.Record{
		ID:             id,
		Title:          m[fieldTitle],
		Description:    m[fieldDescription],
		Severity:       m[fieldSeverity],
		Status:         m[fieldStatus],
		Category:       m[fieldCategory],
		Department:     m[fieldDepartment],
		Location:       m[fieldLocation],
		Recommendation: m[fieldRecommendation],
	}
	if v := m[fieldID]; v != "" {
		r.ID = v
	}
	if y, err := strconv.Atoi(m[fieldYear]); err == nil {
		r.Year = y
	}
	if ts, err := strconv.ParseInt(strings.TrimSpace(m[fieldIdentifiedAt]), 10, 64); err == nil {
		r.IdentifiedAt = time.Unix(ts, 0).UTC()
	}
	return r
}
