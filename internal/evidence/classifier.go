// Package evidence implements the post-answer citation enforcement
// pass. A regex classifier inspects the original user message for
// high-risk claim categories; when any match, the pass fetches domain
// evidence and issues one additional model call demanding inline
// citations. The whole pass is best-effort: any failure preserves the
// draft answer untouched.
package evidence

import (
	"fmt"
	"regexp"
)

// Risk category labels. Order below is also the reporting order.
const (
	CategoryReliability = "reliability"
	CategoryQuantGains  = "quantitative_gains"
	CategoryCompliance  = "compliance"
	CategoryLapTimes    = "lap_times"
)

var categoryOrder = []string{
	CategoryReliability,
	CategoryQuantGains,
	CategoryCompliance,
	CategoryLapTimes,
}

// defaultPatterns are heuristic starting points, overridable per
// category through configuration.
var defaultPatterns = map[string][]string{
	CategoryReliability: {
		`(?i)\b(reliab\w*|fail(s|ed|ure|ures)?|blow(n|s)? up|grenade[ds]?|known issues?|common problems?|longevity|lifespan)\b`,
		`(?i)\bhow long (does|do|will|can)\b`,
	},
	CategoryQuantGains: {
		`(?i)\b(how (much|many))\b.{0,40}\b(hp|bhp|whp|horsepower|torque|nm|lb-?ft|kw)\b`,
		`(?i)\b(gain(s|ed)?|add(s|ed)?|increase[sd]?)\b.{0,30}\b(\d+\s*)?(hp|bhp|whp|horsepower|torque|nm|lb-?ft|kw|%)`,
		`(?i)\b\d+\s*(hp|bhp|whp|kw)\b`,
	},
	CategoryCompliance: {
		`(?i)\b(street legal|road legal|emissions?|smog|tuv|m[ou]t test|carb (legal|compliant)|homologat\w*|inspection)\b`,
		`(?i)\b(legal|illegal|allowed|banned)\b.{0,30}\b(exhaust|tune|mod|tint|cat(alytic)?|delete)\b`,
	},
	CategoryLapTimes: {
		`(?i)\b(lap time[s]?|ring time[s]?|n[uü]rburgring|nordschleife|laguna seca|hockenheim|track record)\b`,
		`(?i)\bhow fast\b.{0,40}\b(track|circuit|lap)\b`,
	},
}

// Classifier matches user messages against per-category regex lists.
type Classifier struct {
	patterns map[string][]*regexp.Regexp
}

// NewClassifier compiles the default patterns with any per-category
// overrides applied. An override replaces the whole category list.
func NewClassifier(overrides map[string][]string) (*Classifier, error) {
	compiled := make(map[string][]*regexp.Regexp, len(categoryOrder))
	for _, cat := range categoryOrder {
		exprs := defaultPatterns[cat]
		if custom, ok := overrides[cat]; ok {
			exprs = custom
		}
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", cat, expr, err)
			}
			compiled[cat] = append(compiled[cat], re)
		}
	}
	return &Classifier{patterns: compiled}, nil
}

// Classify returns the risk categories matched by the user message, in
// the fixed category order. An empty slice means no enforcement needed.
func (c *Classifier) Classify(message string) []string {
	var matched []string
	for _, cat := range categoryOrder {
		for _, re := range c.patterns[cat] {
			if re.MatchString(message) {
				matched = append(matched, cat)
				break
			}
		}
	}
	return matched
}
