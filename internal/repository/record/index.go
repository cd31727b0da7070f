package record

import (
	"github.com/kailas-cloud/askdex/internal/db"
	domrec "github.com/kailas-cloud/askdex/internal/domain/record"
)

// buildIndex returns the FT index over finding hashes. Tag fields are
// case-insensitive so canonical catalog values match regardless of casing
// in the source data.
func buildIndex(name, prefix string) (*db.IndexDefinition, error) {
	return db.NewIndex(name).
		Prefix(prefix).
		Tag(fieldSeverity).
		Tag(fieldStatus).
		TagWithOpts(fieldCategory, ",", false).
		TagWithOpts(fieldDepartment, ",", false).
		SortableNumeric(fieldYear).
		SortableNumeric(fieldIdentifiedAt).
		SortableNumeric(fieldSeverityRank).
		Text(fieldTitle).
		Text(fieldDescription).
		Text(fieldRecommendation).
		Build()
}

func sortField(f domrec.SortField) string {
	switch f {
	case domrec.SortBySeverity:
		return fieldSeverityRank
	case domrec.SortByYear:
		return fieldYear
	default:
		return fieldIdentifiedAt
	}
}
