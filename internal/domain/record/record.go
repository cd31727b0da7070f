// Package record defines the audit finding entity served by the structured store.
package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
)

// Record is a single audit finding.
type Record struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Severity       string    `json:"severity"`
	Status         string    `json:"status"`
	Category       string    `json:"category"`
	Department     string    `json:"department"`
	Location       string    `json:"location,omitempty"`
	Year           int       `json:"year"`
	IdentifiedAt   time.Time `json:"identified_at"`
	Recommendation string    `json:"recommendation,omitempty"`
}

// Validate checks the fields every stored record must carry.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("record id is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("record %s: title is required", r.ID)
	}
	if r.IdentifiedAt.IsZero() {
		return fmt.Errorf("record %s: identified_at is required", r.ID)
	}
	return nil
}

// EffectiveYear returns Year, falling back to the identification date.
func (r Record) EffectiveYear() int {
	if r.Year != 0 {
		return r.Year
	}
	return r.IdentifiedAt.Year()
}

// Date returns the identification date in YYYY-MM-DD form.
func (r Record) Date() string {
	if r.IdentifiedAt.IsZero() {
		return ""
	}
	return r.IdentifiedAt.UTC().Format(filters.DateLayout)
}

// Summary is the condensed view of a record returned in data responses.
type Summary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Severity   string `json:"severity"`
	Status     string `json:"status"`
	Date       string `json:"date"`
	Category   string `json:"category,omitempty"`
	Department string `json:"department,omitempty"`
}

// Summarize returns the condensed view of r.
func (r Record) Summarize() Summary {
	return Summary{
		ID:         r.ID,
		Title:      r.Title,
		Severity:   r.Severity,
		Status:     r.Status,
		Date:       r.Date(),
		Category:   r.Category,
		Department: r.Department,
	}
}

// SortField names a sortable record field.
type SortField string

// Sortable fields.
const (
	SortByDate     SortField = "identified_at"
	SortBySeverity SortField = "severity"
	SortByYear     SortField = "year"
)

// Sort orders store results.
type Sort struct {
	Field      SortField
	Descending bool
}

// Query is a structured store request.
type Query struct {
	Filters filters.Filters
	Sort    *Sort
	Limit   int
}

// SeverityRank orders severities from Low (1) to Critical (4). Unknown
// severities rank 0.
func SeverityRank(severity string) int {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "critical":
		return 4
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 0
	}
}
