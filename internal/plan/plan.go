// Package plan models subscription tiers. A plan is immutable per-caller
// configuration read by the agent loop and tool dispatcher: it gates tool
// access, iteration caps, and response length. Plans are built once from
// config at startup and never mutated.
package plan

import "github.com/torqueworks/torque/internal/config"

// DefaultName is the plan assigned to callers with no known subscription.
const DefaultName = "free"

// Plan is one subscription tier's limits and entitlements.
type Plan struct {
	Name string

	// MaxToolCalls caps tool-use iterations per exchange.
	MaxToolCalls int

	// MaxResponseTokens caps a single model response.
	MaxResponseTokens int

	// allowed is the tool allow-list. nil means every tool.
	allowed map[string]struct{}
}

// Allows reports whether the plan permits the named tool.
func (p *Plan) Allows(tool string) bool {
	if p.allowed == nil {
		return true
	}
	_, ok := p.allowed[tool]
	return ok
}

// AllowsAll reports whether the plan has no tool restrictions.
func (p *Plan) AllowsAll() bool {
	return p.allowed == nil
}

// Table maps plan names to plans.
type Table map[string]*Plan

// NewTable builds the plan table from configuration.
func NewTable(cfgs map[string]config.PlanConfig) Table {
	t := make(Table, len(cfgs))
	for name, cfg := range cfgs {
		p := &Plan{
			Name:              name,
			MaxToolCalls:      cfg.MaxToolCalls,
			MaxResponseTokens: cfg.MaxResponseTokens,
		}
		if len(cfg.Tools) > 0 {
			p.allowed = make(map[string]struct{}, len(cfg.Tools))
			for _, tool := range cfg.Tools {
				p.allowed[tool] = struct{}{}
			}
		}
		t[name] = p
	}
	return t
}

// Get returns the named plan, falling back to the default plan for
// unknown names. Returns nil only if the table has no default either.
func (t Table) Get(name string) *Plan {
	if p, ok := t[name]; ok {
		return p
	}
	return t[DefaultName]
}
