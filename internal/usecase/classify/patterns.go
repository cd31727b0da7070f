package classify

import (
	"regexp"
	"slices"
	"strings"

	"github.com/kailas-cloud/askdex/internal/domain/catalog"
)

// pattern is one scored indicator. Trigger patterns force the complex path.
type pattern struct {
	name    string
	re      *regexp.Regexp
	trigger bool
}

type patternSet struct {
	catalog *catalog.Catalog
	simple  []pattern
	complex []pattern
	hybrid  []pattern
}

var (
	lookupVerbs  = pattern{name: "lookup_verb", re: regexp.MustCompile(`(?i)\b(show|list|display|get|find|fetch|view|give\s+me|pull\s+up)\b`)}
	countPhrases = pattern{name: "count", re: regexp.MustCompile(`(?i)\b(how\s+many|count|number\s+of|total\s+(number|count))\b`)}
	yearTokens   = pattern{name: "year", re: regexp.MustCompile(`(?i)\b20\d{2}\b|\b(last|this|current)\s+year\b|\b(last|past)\s+\d{1,3}\s+(day|week|month)s?\b`)}

	complexPatterns = []pattern{
		{name: "recommend", trigger: true, re: regexp.MustCompile(`(?i)\brecommend\w*`)},
		{name: "analyze", trigger: true, re: regexp.MustCompile(`(?i)\banaly[sz](e|es|ed|ing|is)\b`)},
		{name: "why", trigger: true, re: regexp.MustCompile(`(?i)\bwhy\b`)},
		{name: "patterns", trigger: true, re: regexp.MustCompile(`(?i)\bpatterns?\b`)},
		{name: "compare", trigger: true, re: regexp.MustCompile(`(?i)\bcompar(e|es|ed|ing|ison|isons)\b`)},
		{name: "trends", trigger: true, re: regexp.MustCompile(`(?i)\btrend(s|ing)?\b`)},
		{name: "insights", trigger: true, re: regexp.MustCompile(`(?i)\binsights?\b`)},
		{name: "root_cause", trigger: true, re: regexp.MustCompile(`(?i)\broot\s+causes?\b`)},
		{name: "predict", trigger: true, re: regexp.MustCompile(`(?i)\bpredict\w*`)},
		{name: "correlate", trigger: true, re: regexp.MustCompile(`(?i)\bcorrelat\w*`)},
		{name: "prioritize", trigger: true, re: regexp.MustCompile(`(?i)\bprioriti[sz](e|es|ed|ing|ation)\b`)},
		{name: "priorities", re: regexp.MustCompile(`(?i)\bpriorit(y|ies)\b`)},
		{name: "explain", re: regexp.MustCompile(`(?i)\bexplain\w*`)},
		{name: "summarize", re: regexp.MustCompile(`(?i)\bsummar(y|ies|i[sz]e|i[sz]ed|i[sz]ing)\b`)},
		{name: "assess", re: regexp.MustCompile(`(?i)\b(assess|evaluat)\w*`)},
		{name: "improve", re: regexp.MustCompile(`(?i)\bimprov(e|es|ed|ing|ement|ements)\b`)},
		{name: "advice", re: regexp.MustCompile(`(?i)\b(what\s+should|how\s+(can|could|should|do)\s+we|advise|suggest\w*)\b`)},
		{name: "impact", re: regexp.MustCompile(`(?i)\b(impact|implications?|risk\s+exposure)\b`)},
	}

	hybridPatterns = []pattern{
		{name: "lookup_then_reason", re: regexp.MustCompile(`(?i)\b(show|list|get|find|give\s+me|pull\s+up)\b.*\b(and|then|plus)\b.*\b(explain|summari[sz]e|assess|evaluate|describe|tell\s+me|comment)\w*`)},
		{name: "with_summary", re: regexp.MustCompile(`(?i)\bwith\s+(a|an|some)\s+(short\s+|brief\s+)?(summary|overview|assessment|explanation|commentary|interpretation)\b`)},
		{name: "along_with", re: regexp.MustCompile(`(?i)\b(along|together)\s+with\s+(a|an|your|some)\b`)},
		{name: "what_it_means", re: regexp.MustCompile(`(?i)\bwhat\s+(do|does)\s+(these|they|this|that|the\s+data)\s+(mean|say|suggest|indicate)\b`)},
		{name: "and_reason", re: regexp.MustCompile(`(?i)\band\s+(explain|summari[sz]e|describe|assess|evaluate)\b`)},
	}
)

// buildPatterns derives the simple-lookup indicators from the catalog so that
// every canonical value and alias counts as a lookup signal.
func buildPatterns(cat *catalog.Catalog) *patternSet {
	ps := &patternSet{
		catalog: cat,
		simple:  []pattern{lookupVerbs, countPhrases, yearTokens},
		complex: complexPatterns,
		hybrid:  hybridPatterns,
	}

	byField := make(map[catalog.Field][]string)
	for _, term := range cat.Terms() {
		for _, f := range catalog.EnumFields {
			if _, ok := cat.Canonical(f, term); ok {
				byField[f] = append(byField[f], term)
			}
		}
	}

	for _, f := range catalog.EnumFields {
		ps.simple = append(ps.simple, pattern{
			name: string(f),
			re:   regexp.MustCompile(`(?i)\b(` + alternation(byField[f]) + `)\b`),
		})
	}
	return ps
}

// alternation joins terms longest first so the regexp prefers the longest alias.
func alternation(terms []string) string {
	seen := make(map[string]struct{}, len(terms))
	uniq := make([]string, 0, len(terms))
	for _, t := range terms {
		k := strings.ToLower(t)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	slices.SortStableFunc(uniq, func(a, b string) int { return len(b) - len(a) })

	parts := make([]string, len(uniq))
	for i, t := range uniq {
		words := strings.Fields(t)
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		parts[i] = strings.Join(words, `\s+`)
	}
	return strings.Join(parts, "|")
}
