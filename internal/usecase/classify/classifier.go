// Package classify scores free-text queries against heuristic pattern sets
// and decides which execution path should answer them.
package classify

import (
	"strings"
	"sync/atomic"

	"github.com/kailas-cloud/askdex/internal/domain/catalog"
	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
)

// Config holds the decision thresholds and per-branch confidence bonuses.
type Config struct {
	HybridMin          float64 // hybrid score must exceed this
	HybridRatio        float64 // and be at least this fraction of the simple score
	MixedMin           float64 // simple and complex both above this means hybrid
	HybridBonus        float64
	MixedBonus         float64
	ComplexBonus       float64
	TriggerBonus       float64
	SimpleBonus        float64
	FallbackConfidence float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		HybridMin:          0.3,
		HybridRatio:        0.5,
		MixedMin:           0.2,
		HybridBonus:        0.3,
		MixedBonus:         0.3,
		ComplexBonus:       0.3,
		TriggerBonus:       0.4,
		SimpleBonus:        0.3,
		FallbackConfidence: 0.4,
	}
}

// Scores are the raw per-set match scores of one query.
type Scores struct {
	Simple  float64 `json:"simple"`
	Complex float64 `json:"complex"`
	Hybrid  float64 `json:"hybrid"`
}

// Decision is a classification with its diagnostics.
type Decision struct {
	Intent intent.Intent
	Scores Scores
	Rule   string
}

// Classifier assigns a kind and confidence to queries. It is safe for
// concurrent use and has no side effects.
type Classifier struct {
	catalog  catalog.Provider
	filters  FilterSource
	cfg      Config
	patterns atomic.Pointer[patternSet]
}

// New creates a classifier. Pattern sets are rebuilt whenever the catalog
// provider returns a different catalog.
func New(cat catalog.Provider, filters FilterSource, cfg Config) *Classifier {
	return &Classifier{catalog: cat, filters: filters, cfg: cfg}
}

// Classify returns the intent of text.
func (c *Classifier) Classify(text string) intent.Intent {
	return c.Decide(text).Intent
}

// Decide classifies text and reports the scores and rule that produced the result.
func (c *Classifier) Decide(text string) Decision {
	ps := c.patternSet()
	text = strings.TrimSpace(text)

	simple, _ := score(ps.simple, text)
	complexScore, triggers := score(ps.complex, text)
	hybrid, _ := score(ps.hybrid, text)
	scores := Scores{Simple: simple, Complex: complexScore, Hybrid: hybrid}

	kind, confidence, rule := c.decide(scores, len(triggers) > 0)

	f := c.filters.ExtractPattern(text)
	return Decision{
		Intent: intent.New(kind, confidence, f, triggers),
		Scores: scores,
		Rule:   rule,
	}
}

// decide applies the ordered decision policy. A trigger term is decisive and
// is checked before the hybrid rules, so an explicit analytical request is
// never diluted into a lookup.
func (c *Classifier) decide(s Scores, hasTrigger bool) (intent.Kind, float64, string) {
	cfg := c.cfg
	switch {
	case hasTrigger:
		return intent.KindComplex, max(s.Complex, s.Hybrid) + cfg.TriggerBonus, "trigger_term"
	case s.Hybrid > cfg.HybridMin && s.Hybrid >= cfg.HybridRatio*s.Simple:
		return intent.KindHybrid, s.Hybrid + cfg.HybridBonus, "hybrid_pattern"
	case s.Simple > cfg.MixedMin && s.Complex > cfg.MixedMin:
		return intent.KindHybrid, (s.Simple+s.Complex)/2 + cfg.MixedBonus, "mixed_signals"
	case s.Complex > s.Simple:
		return intent.KindComplex, s.Complex + cfg.ComplexBonus, "complex_dominant"
	case s.Simple > 0:
		return intent.KindSimple, s.Simple + cfg.SimpleBonus, "simple_lookup"
	default:
		return intent.KindComplex, cfg.FallbackConfidence, "default"
	}
}

func (c *Classifier) patternSet() *patternSet {
	cat := c.catalog.Current()
	if ps := c.patterns.Load(); ps != nil && ps.catalog == cat {
		return ps
	}
	ps := buildPatterns(cat)
	c.patterns.Store(ps)
	return ps
}

// score rates text against a pattern set: 60% weight on how many patterns
// matched (saturating at three), 40% on the matched span relative to the
// query length, each pattern contributing at most 1. It also returns the
// surface text of every trigger pattern match.
func score(patterns []pattern, text string) (float64, []string) {
	if text == "" {
		return 0, nil
	}
	var (
		matched  int
		coverage float64
		triggers []string
	)
	for _, p := range patterns {
		locs := p.re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		matched++
		span := 0
		for _, loc := range locs {
			span += loc[1] - loc[0]
			if p.trigger {
				triggers = appendUnique(triggers, strings.ToLower(text[loc[0]:loc[1]]))
			}
		}
		coverage += min(1, float64(span)/float64(len(text)))
	}
	return 0.6*min(float64(matched)/3, 1) + 0.4*min(coverage, 1), triggers
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
