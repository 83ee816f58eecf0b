package tools

import (
	"github.com/torqueworks/torque/internal/config"
	"github.com/torqueworks/torque/internal/plan"
)

// defaultMinTools is the floor below which domain filtering is discarded.
// Starving the model of capability over a classifier false negative is
// worse than a slightly larger prompt.
const defaultMinTools = 4

// Select returns the tool subset to expose to the model for one exchange.
//
// The algorithm: intersect the catalog with the plan's allow-list; with no
// detected domains, return that whole set; otherwise take the union of the
// configured core tools and every tool tagged with a detected domain,
// still plan-gated. If the filtered set ends up smaller than the MinTools
// floor, fall back to the full plan-allowed set. Filtering only bounds
// prompt size — it must never change answer correctness.
func Select(reg *Registry, detected []string, pl *plan.Plan, filterCfg config.FilterConfig) []*Tool {
	allowed := planAllowed(reg, pl)

	if len(detected) == 0 {
		return allowed
	}

	minTools := filterCfg.MinTools
	if minTools <= 0 {
		minTools = defaultMinTools
	}

	core := make(map[string]struct{}, len(filterCfg.CoreTools))
	for _, name := range filterCfg.CoreTools {
		core[name] = struct{}{}
	}
	domainSet := make(map[string]struct{}, len(detected))
	for _, d := range detected {
		domainSet[d] = struct{}{}
	}

	var filtered []*Tool
	for _, t := range allowed {
		if _, isCore := core[t.Name]; isCore {
			filtered = append(filtered, t)
			continue
		}
		for _, d := range t.Domains {
			if _, hit := domainSet[d]; hit {
				filtered = append(filtered, t)
				break
			}
		}
	}

	if len(filtered) < minTools {
		return allowed
	}
	return filtered
}

// planAllowed returns the catalog intersected with the plan's allow-list,
// in registration order.
func planAllowed(reg *Registry, pl *plan.Plan) []*Tool {
	var out []*Tool
	for _, name := range reg.Names() {
		if pl != nil && !pl.Allows(name) {
			continue
		}
		out = append(out, reg.Get(name))
	}
	return out
}
