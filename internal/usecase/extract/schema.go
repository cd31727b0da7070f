package extract

import (
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/askdex/internal/domain/catalog"
	"github.com/kailas-cloud/askdex/internal/domain/llm"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
)

// SchemaName identifies the structured-extraction schema sent to the model.
const SchemaName = "finding_filters"

// Schema returns the fixed field schema for model-assisted extraction. Enum
// fields list the catalog's canonical values.
func Schema(cat *catalog.Catalog) llm.Schema {
	str := func(desc string, values []string) llm.Property {
		return llm.Property{Type: llm.TypeString, Description: desc, Enum: values}
	}
	list := func(desc string, values []string) llm.Property {
		return llm.Property{Type: llm.TypeArray, Description: desc, Items: &llm.Property{Type: llm.TypeString, Enum: values}}
	}

	return llm.Schema{
		Name:        SchemaName,
		Description: "Filters for searching audit findings. Leave a field empty when the question does not constrain it.",
		Root: llm.Property{
			Type: llm.TypeObject,
			Properties: map[string]llm.Property{
				"year":            {Type: llm.TypeInteger, Description: "four-digit year the findings were identified, 0 if not given"},
				"category":        str("site category", append([]string{""}, cat.Values(catalog.FieldCategory)...)),
				"severity_levels": list("severity levels", cat.Values(catalog.FieldSeverity)),
				"status_levels":   list("remediation statuses", cat.Values(catalog.FieldStatus)),
				"department":      str("owning department", append([]string{""}, cat.Values(catalog.FieldDepartment)...)),
				"keywords":        list("subject terms to match in the finding text", nil),
				"date_start":      str("inclusive start date YYYY-MM-DD, empty if not given", nil),
				"date_end":        str("inclusive end date YYYY-MM-DD, empty if not given", nil),
			},
			Required: []string{
				"year", "category", "severity_levels", "status_levels",
				"department", "keywords", "date_start", "date_end",
			},
		},
	}
}

// fromFields converts a decoded model response into filters. Known aliases
// are resolved to canonical values; anything else is kept verbatim so that
// validation can drop it with a warning.
func fromFields(cat *catalog.Catalog, fields map[string]any) filters.Filters {
	var f filters.Filters

	if y, ok := toInt(fields["year"]); ok && y != 0 {
		f.Year = filters.IntPtr(y)
	}
	f.Category = canonicalOrRaw(cat, catalog.FieldCategory, toString(fields["category"]))
	f.Department = canonicalOrRaw(cat, catalog.FieldDepartment, toString(fields["department"]))
	for _, s := range toStrings(fields["severity_levels"]) {
		f.Severities = append(f.Severities, canonicalOrRaw(cat, catalog.FieldSeverity, s))
	}
	for _, s := range toStrings(fields["status_levels"]) {
		f.Statuses = append(f.Statuses, canonicalOrRaw(cat, catalog.FieldStatus, s))
	}
	f.Keywords = toStrings(fields["keywords"])

	start, end := toString(fields["date_start"]), toString(fields["date_end"])
	if start != "" || end != "" {
		f.DateRange = &filters.DateRange{Start: start, End: end}
	}
	return f.Normalize()
}

func canonicalOrRaw(cat *catalog.Catalog, field catalog.Field, v string) string {
	if v == "" {
		return ""
	}
	if c, ok := cat.Canonical(field, v); ok {
		return c
	}
	return v
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := toString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
