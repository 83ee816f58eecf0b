// Package domains detects coarse topic labels from user text. Labels are
// used only to bound which tools the model sees; they never affect answer
// correctness. Classification is pure keyword matching, deterministic, and
// total — unknown text yields an empty set.
package domains

import "strings"

// Label constants for the fixed domain vocabulary.
const (
	Comparison    = "comparison"
	Modifications = "modifications"
	Performance   = "performance"
	Reliability   = "reliability"
	Maintenance   = "maintenance"
	Buying        = "buying"
	Track         = "track"
	Events        = "events"
	Education     = "education"
)

// defaultKeywords maps each domain to the phrases that trigger it. The
// lists are heuristic product configuration, not invariants; operators
// can override them per-domain in the config file.
var defaultKeywords = map[string][]string{
	Comparison: {
		"vs", "versus", "compare", "comparison", "better than",
		"or should i", "which is better", "difference between",
	},
	Modifications: {
		"mod", "mods", "modified", "tune", "tuned", "tuning",
		"intake", "exhaust", "downpipe", "coilover", "turbo upgrade",
		"supercharger", "flash", "stage 1", "stage 2", "bolt-on",
	},
	Performance: {
		"horsepower", "hp", "torque", "0-60", "0 to 60", "quarter mile",
		"dyno", "whp", "top speed", "acceleration", "power",
	},
	Reliability: {
		"reliable", "reliability", "known issues", "problems",
		"common failures", "break down", "blown", "head gasket",
		"transmission failure", "fail", "lemon",
	},
	Maintenance: {
		"maintenance", "service", "oil change", "interval",
		"spark plugs", "timing belt", "timing chain", "brake fluid",
		"coolant", "cost to own", "upkeep",
	},
	Buying: {
		"buy", "buying", "purchase", "price", "worth it", "deal",
		"for sale", "market", "depreciation", "resale", "budget",
	},
	Track: {
		"track", "lap time", "lap times", "nurburgring", "circuit",
		"autocross", "time attack", "hpde", "track day",
	},
	Events: {
		"event", "meet", "car show", "cars and coffee", "rally",
		"race weekend", "schedule",
	},
	Education: {
		"how does", "what is", "explain", "why does", "learn",
		"understand", "difference between awd",
	},
}

// order fixes the iteration order for deterministic first-match insertion.
var order = []string{
	Comparison, Modifications, Performance, Reliability,
	Maintenance, Buying, Track, Events, Education,
}

// Classifier maps raw user text to domain labels.
type Classifier struct {
	keywords map[string][]string
}

// NewClassifier creates a classifier. overrides replaces the built-in
// keyword list for any domain it names; other domains keep their defaults.
func NewClassifier(overrides map[string][]string) *Classifier {
	kw := make(map[string][]string, len(defaultKeywords))
	for domain, words := range defaultKeywords {
		kw[domain] = words
	}
	for domain, words := range overrides {
		kw[domain] = words
	}
	return &Classifier{keywords: kw}
}

// Classify returns the domains matched by text, in the vocabulary's fixed
// order of first match. Never fails; returns nil when nothing matches.
func (c *Classifier) Classify(text string) []string {
	q := strings.ToLower(text)

	var matched []string
	for _, domain := range order {
		for _, word := range c.keywords[domain] {
			if containsWord(q, word) {
				matched = append(matched, domain)
				break
			}
		}
	}
	return matched
}

// containsWord matches phrase as a whole word or phrase inside text.
// Plain substring matching would make "hp" match "chproof"; bounding the
// match at non-letter characters avoids that class of false positive.
func containsWord(text, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)

		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
		if idx >= len(text) {
			return false
		}
	}
}

func isWordChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
