package agent

import (
	"github.com/torqueworks/torque/internal/llm"
)

// Request is one inbound user message plus caller context.
type Request struct {
	// Message is the user's text. Required.
	Message string

	// CallerID identifies the caller for balance and persistence.
	CallerID string

	// ConversationID continues an existing conversation when set; a new
	// conversation is created otherwise.
	ConversationID string

	// PlanName selects the caller's subscription tier. Unknown names
	// fall back to the default tier.
	PlanName string

	// Vehicle is the caller's current vehicle variant slug, if any.
	// Injected into variant-taking tool calls when the model omits it.
	Vehicle string

	// HistoryOverride replaces stored conversation history when non-nil.
	// Used by tests and stateless callers.
	HistoryOverride []llm.Message
}

// ToolUse is one audited tool invocation: the name and the argument key
// names used, never raw values. Injected lists keys the executor filled
// in from caller context rather than the model's own arguments.
type ToolUse struct {
	Name     string   `json:"name"`
	ArgKeys  []string `json:"arg_keys,omitempty"`
	Injected []string `json:"injected,omitempty"`
	OK       bool     `json:"ok"`
}

// Result is the finalized outcome of one exchange. It carries the same
// fields the done wire event and the synchronous JSON response expose.
type Result struct {
	CorrelationID  string
	ConversationID string
	Answer         string
	Domains        []string
	ToolsUsed      []ToolUse
	Citations      []string

	InputTokens  int
	OutputTokens int
	ModelCalls   int
	CostCents    int64

	EvidenceTriggered bool
}

// ToolNames returns just the invoked tool names, in invocation order.
func (r *Result) ToolNames() []string {
	names := make([]string, 0, len(r.ToolsUsed))
	for _, tu := range r.ToolsUsed {
		names = append(names, tu.Name)
	}
	return names
}
