package tools

import "fmt"

// Structured failure kinds reported back to the model. The model relays
// these in natural language; they are never surfaced raw to the caller.
const (
	ErrKindUnknownTool     = "unknown_tool"
	ErrKindExecutionFailed = "execution_failed"
	ErrKindUpgradeRequired = "upgrade_required"
)

// ErrToolUnavailable is returned when a call targets a tool that is not
// present in the catalog. This indicates a capability mismatch, not a
// transient execution failure.
type ErrToolUnavailable struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available in this context", e.ToolName)
}
