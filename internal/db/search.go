package db

// ClauseKind selects how a clause constrains a field.
type ClauseKind int

const (
	// ClauseTag matches any of the values exactly.
	ClauseTag ClauseKind = iota
	// ClauseRange bounds a numeric field inclusively.
	ClauseRange
	// ClauseText matches any of the words in text fields.
	ClauseText
)

// Clause is one conjunct of a search. Values inside a clause are OR-ed.
type Clause struct {
	Kind   ClauseKind
	Field  string // empty for ClauseText searches every TEXT field
	Values []string
	Min    *float64
	Max    *float64
}

// Tag returns a tag clause.
func Tag(field string, values ...string) Clause {
	return Clause{Kind: ClauseTag, Field: field, Values: values}
}

// Range returns an inclusive numeric range clause. Nil bounds are open.
func Range(field string, lo, hi *float64) Clause {
	return Clause{Kind: ClauseRange, Field: field, Min: lo, Max: hi}
}

// Text returns a full-text clause.
func Text(field string, words ...string) Clause {
	return Clause{Kind: ClauseText, Field: field, Values: words}
}

// SearchQuery is the input for a filtered, sorted FT.SEARCH.
type SearchQuery struct {
	Index      string
	Clauses    []Clause
	SortBy     string
	Descending bool
	Offset     int
	Limit      int
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Fields map[string]string
}
