// Package catalog holds the canonical values of every filterable finding
// field together with the natural-language aliases that map onto them.
package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Field names a filterable record field.
type Field string

// Filterable fields.
const (
	FieldYear       Field = "year"
	FieldCategory   Field = "category"
	FieldSeverity   Field = "severity"
	FieldStatus     Field = "status"
	FieldDepartment Field = "department"
	FieldKeywords   Field = "keywords"
	FieldDateRange  Field = "date_range"
)

// EnumFields lists the alias-driven fields in scan order.
var EnumFields = []Field{FieldSeverity, FieldStatus, FieldCategory, FieldDepartment}

// Year bounds accepted anywhere a year appears.
const (
	MinYear = 2000
	MaxYear = 2099
)

// Keyword limits.
const (
	MaxKeywords      = 10
	MaxKeywordLength = 64
)

// Entry is one canonical value and the terms that refer to it.
type Entry struct {
	Canonical string
	Aliases   []string
}

// Hit is a single alias occurrence found in free text.
type Hit struct {
	Field     Field
	Canonical string
	Term      string
	Start     int
	End       int
}

type alias struct {
	field     Field
	canonical string
	term      string
	re        *regexp.Regexp
}

// Catalog is an immutable set of alias tables and field descriptors.
// It is safe for concurrent use.
type Catalog struct {
	entries   map[Field][]Entry
	lookup    map[Field]map[string]string
	aliases   []alias // longest term first
	overrides map[Field]map[string][]string
}

// New builds a catalog from per-field entries. Every canonical value is also
// registered as an alias of itself.
func New(entries map[Field][]Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make(map[Field][]Entry, len(entries)),
		lookup:  make(map[Field]map[string]string, len(entries)),
	}

	for _, f := range EnumFields {
		list, ok := entries[f]
		if !ok || len(list) == 0 {
			return nil, fmt.Errorf("catalog: field %s has no values", f)
		}
		c.lookup[f] = make(map[string]string)
		for _, e := range list {
			if e.Canonical == "" {
				return nil, fmt.Errorf("catalog: empty canonical value for %s", f)
			}
			terms := append([]string{e.Canonical}, e.Aliases...)
			for _, t := range terms {
				if err := c.add(f, e.Canonical, t); err != nil {
					return nil, err
				}
			}
			c.entries[f] = append(c.entries[f], Entry{Canonical: e.Canonical, Aliases: append([]string(nil), e.Aliases...)})
		}
	}

	sort.SliceStable(c.aliases, func(i, j int) bool {
		return len(c.aliases[i].term) > len(c.aliases[j].term)
	})
	return c, nil
}

func (c *Catalog) add(f Field, canonical, term string) error {
	key := normalize(term)
	if key == "" {
		return fmt.Errorf("catalog: empty alias for %s %q", f, canonical)
	}
	if !isWordRune(firstRune(key)) || !isWordRune(lastRune(key)) {
		return fmt.Errorf("catalog: alias %q must start and end with a letter or digit", term)
	}
	if existing, ok := c.lookup[f][key]; ok {
		if existing != canonical {
			return fmt.Errorf("catalog: alias %q maps to both %q and %q", term, existing, canonical)
		}
		return nil
	}
	c.lookup[f][key] = canonical
	c.aliases = append(c.aliases, alias{
		field:     f,
		canonical: canonical,
		term:      key,
		re:        regexp.MustCompile(`(?i)\b` + termPattern(key) + `\b`),
	})
	return nil
}

// Canonical resolves a value or alias of field to its canonical form.
func (c *Catalog) Canonical(f Field, value string) (string, bool) {
	m, ok := c.lookup[f]
	if !ok {
		return "", false
	}
	v, ok := m[normalize(value)]
	return v, ok
}

// Values returns the canonical values of an enumerated field.
func (c *Catalog) Values(f Field) []string {
	out := make([]string, 0, len(c.entries[f]))
	for _, e := range c.entries[f] {
		out = append(out, e.Canonical)
	}
	return out
}

// Terms returns every alias and canonical term known for the enumerated fields,
// lower-cased, longest first.
func (c *Catalog) Terms() []string {
	out := make([]string, 0, len(c.aliases))
	for _, a := range c.aliases {
		out = append(out, a.term)
	}
	return out
}

// Scan finds all non-overlapping alias occurrences in text. Longer terms win,
// so "front office" is reported as a department and not as the Office category.
func (c *Catalog) Scan(text string) []Hit {
	taken := make([]bool, len(text))
	var hits []Hit
	for _, a := range c.aliases {
		for _, loc := range a.re.FindAllStringIndex(text, -1) {
			if overlaps(taken, loc[0], loc[1]) {
				continue
			}
			for i := loc[0]; i < loc[1]; i++ {
				taken[i] = true
			}
			hits = append(hits, Hit{
				Field:     a.field,
				Canonical: a.canonical,
				Term:      strings.ToLower(text[loc[0]:loc[1]]),
				Start:     loc[0],
				End:       loc[1],
			})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Start < hits[j].Start })
	return hits
}

// WithAliases returns a copy of the catalog extended with extra aliases.
// Unknown fields or canonical values are rejected.
func (c *Catalog) WithAliases(extra map[Field]map[string][]string) (*Catalog, error) {
	merged := make(map[Field][]Entry, len(c.entries))
	for f, list := range c.entries {
		for _, e := range list {
			merged[f] = append(merged[f], Entry{Canonical: e.Canonical, Aliases: append([]string(nil), e.Aliases...)})
		}
	}

	for f, byCanonical := range extra {
		list, ok := merged[f]
		if !ok {
			return nil, fmt.Errorf("catalog: field %q does not take aliases", f)
		}
		for canonical, terms := range byCanonical {
			idx := -1
			for i, e := range list {
				if strings.EqualFold(e.Canonical, canonical) {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, fmt.Errorf("catalog: unknown %s value %q", f, canonical)
			}
			list[idx].Aliases = append(list[idx].Aliases, terms...)
		}
	}

	out, err := New(merged)
	if err != nil {
		return nil, err
	}
	out.overrides = extra
	return out, nil
}

// Overrides returns the extra aliases this catalog was extended with.
func (c *Catalog) Overrides() map[Field]map[string][]string { return c.overrides }

func overlaps(taken []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if taken[i] {
			return true
		}
	}
	return false
}

// termPattern quotes a term and lets any run of whitespace match its spaces.
func termPattern(term string) string {
	parts := strings.Fields(term)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, `\s+`)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func isWordRune(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	r := []rune(s)
	if len(r) == 0 {
		return 0
	}
	return r[len(r)-1]
}
