package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/askdex/internal/domain/catalog"
	"github.com/kailas-cloud/askdex/internal/domain/query/filters"
)

var (
	yearRe         = regexp.MustCompile(`\b20\d{2}\b`)
	lastYearRe     = regexp.MustCompile(`(?i)\b(last|previous|prior)\s+year\b`)
	thisYearRe     = regexp.MustCompile(`(?i)\b(this|current)\s+year\b`)
	sinceYearRe    = regexp.MustCompile(`(?i)\b(since|after)\s+(20\d{2})\b`)
	beforeYearRe   = regexp.MustCompile(`(?i)\b(before|prior\s+to|until|through)\s+(20\d{2})\b`)
	betweenYearsRe = regexp.MustCompile(`(?i)\bbetween\s+(20\d{2})\s+and\s+(20\d{2})\b`)
	lastSpanRe     = regexp.MustCompile(`(?i)\b(last|past)\s+(\d{1,3})\s+(day|week|month)s?\b`)
	wordRe         = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'-]*`)
)

// ExtractPattern derives filters from text deterministically with no external calls.
func (e *Extractor) ExtractPattern(text string) filters.Filters {
	cat := e.catalog.Current()
	now := e.now()
	mask := newMask(text)

	var f filters.Filters
	f.DateRange = extractDateRange(text, now, mask)

	years := extractYears(text, now, mask)
	switch {
	case len(years) == 1:
		f.Year = filters.IntPtr(years[0])
	case len(years) > 1 && f.DateRange == nil:
		lo, hi := years[0], years[0]
		for _, y := range years[1:] {
			lo, hi = min(lo, y), max(hi, y)
		}
		f.DateRange = &filters.DateRange{Start: yearStart(lo), End: yearEnd(hi)}
	}

	for _, h := range cat.Scan(text) {
		mask.cover(h.Start, h.End)
		switch h.Field {
		case catalog.FieldSeverity:
			f.Severities = append(f.Severities, h.Canonical)
		case catalog.FieldStatus:
			f.Statuses = append(f.Statuses, h.Canonical)
		case catalog.FieldCategory:
			if f.Category == "" {
				f.Category = h.Canonical
			}
		case catalog.FieldDepartment:
			if f.Department == "" {
				f.Department = h.Canonical
			}
		}
	}

	f.Keywords = keywords(mask.apply())
	return f.Normalize()
}

// extractYears returns distinct years in order of appearance. Years inside
// already masked spans are skipped.
func extractYears(text string, now time.Time, m *mask) []int {
	var years []int
	add := func(y int) {
		for _, v := range years {
			if v == y {
				return
			}
		}
		years = append(years, y)
	}

	for _, loc := range lastYearRe.FindAllStringIndex(text, -1) {
		m.cover(loc[0], loc[1])
		add(now.Year() - 1)
	}
	for _, loc := range thisYearRe.FindAllStringIndex(text, -1) {
		m.cover(loc[0], loc[1])
		add(now.Year())
	}
	for _, loc := range yearRe.FindAllStringIndex(text, -1) {
		if m.covered(loc[0], loc[1]) {
			continue
		}
		m.cover(loc[0], loc[1])
		y, err := strconv.Atoi(text[loc[0]:loc[1]])
		if err != nil {
			continue
		}
		add(y)
	}
	return years
}

// extractDateRange handles open and closed range phrases. The year tokens
// consumed by a range are masked so they do not also become a year filter.
func extractDateRange(text string, now time.Time, m *mask) *filters.DateRange {
	var dr filters.DateRange

	if sub := betweenYearsRe.FindStringSubmatchIndex(text); sub != nil {
		a := atoi(text[sub[2]:sub[3]])
		b := atoi(text[sub[4]:sub[5]])
		dr.Start, dr.End = yearStart(min(a, b)), yearEnd(max(a, b))
		m.cover(sub[0], sub[1])
	}
	if sub := sinceYearRe.FindStringSubmatchIndex(text); sub != nil && dr.Start == "" {
		y := atoi(text[sub[4]:sub[5]])
		if strings.EqualFold(text[sub[2]:sub[3]], "after") {
			y++
		}
		dr.Start = yearStart(y)
		m.cover(sub[0], sub[1])
	}
	if sub := beforeYearRe.FindStringSubmatchIndex(text); sub != nil && dr.End == "" {
		y := atoi(text[sub[4]:sub[5]])
		word := strings.ToLower(strings.Join(strings.Fields(text[sub[2]:sub[3]]), " "))
		if word == "before" || word == "prior to" {
			y--
		}
		dr.End = yearEnd(y)
		m.cover(sub[0], sub[1])
	}
	if sub := lastSpanRe.FindStringSubmatchIndex(text); sub != nil && dr.Start == "" {
		n := atoi(text[sub[4]:sub[5]])
		var start time.Time
		switch strings.ToLower(text[sub[6]:sub[7]]) {
		case "day":
			start = now.AddDate(0, 0, -n)
		case "week":
			start = now.AddDate(0, 0, -7*n)
		case "month":
			start = now.AddDate(0, -n, 0)
		}
		dr.Start = start.Format(filters.DateLayout)
		dr.End = now.Format(filters.DateLayout)
		m.cover(sub[0], sub[1])
	}

	if dr.IsEmpty() {
		return nil
	}
	return &dr
}

func keywords(text string) []string {
	var out []string
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		w = strings.Trim(w, "'-")
		if len([]rune(w)) <= 3 || isStopword(w) {
			continue
		}
		out = append(out, w)
		if len(out) == catalog.MaxKeywords {
			break
		}
	}
	return out
}

func yearStart(y int) string { return strconv.Itoa(y) + "-01-01" }
func yearEnd(y int) string   { return strconv.Itoa(y) + "-12-31" }

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// mask tracks byte spans of text already consumed by an extraction rule.
type mask struct {
	text  string
	taken []bool
}

func newMask(text string) *mask {
	return &mask{text: text, taken: make([]bool, len(text))}
}

func (m *mask) cover(start, end int) {
	for i := start; i < end; i++ {
		m.taken[i] = true
	}
}

func (m *mask) covered(start, end int) bool {
	for i := start; i < end; i++ {
		if m.taken[i] {
			return true
		}
	}
	return false
}

// apply returns text with every covered byte replaced by a space.
func (m *mask) apply() string {
	b := []byte(m.text)
	for i, t := range m.taken {
		if t {
			b[i] = ' '
		}
	}
	return string(b)
}
