// Package tools defines the fixed tool catalog the model may invoke, the
// executor that runs requested calls against the data backend, and the
// parallel dispatcher that settles a whole batch of calls from one model
// turn. The catalog is closed: every tool is registered at construction
// and nothing is discovered dynamically.
package tools

import (
	"context"
	"sort"
)

// Backend is the external collaborator that performs the actual data
// lookup for a tool. The orchestrator never interprets the returned
// payload beyond serializing it back to the model.
type Backend interface {
	// Invoke runs the named lookup. cacheHit reports whether the backend
	// served the result from its cache.
	Invoke(ctx context.Context, name string, args map[string]any, meta Meta) (payload any, cacheHit bool, err error)
}

// Meta carries per-exchange context to the backend.
type Meta struct {
	// CorrelationID is the opaque trace token for the exchange.
	CorrelationID string
	// CacheScopeKey scopes backend caching, typically per caller.
	CacheScopeKey string
}

// Tool describes one catalog entry.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON Schema for the tool's arguments.
	Parameters map[string]any
	// Domains tags the tool for domain-based filtering. A tool with no
	// tags is only exposed via the core set or an unfiltered catalog.
	Domains []string
}

// Registry holds the fixed tool catalog.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty registry. Most callers want [Catalog]
// instead, which returns the registry pre-loaded with the built-in tools.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry. Later registrations with the
// same name replace earlier ones.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil if absent.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns all tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Defs converts the given tools to the wire format the LLM layer expects.
func Defs(list []*Tool) []map[string]any {
	var result []map[string]any
	for _, t := range list {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  params,
			},
		})
	}
	return result
}

// sortedKeys returns the keys of args in sorted order. Used for audit
// records: argument keys are logged, argument values never are.
func sortedKeys(args map[string]any) []string {
	if len(args) == 0 {
		return nil
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
