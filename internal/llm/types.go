// Package llm provides LLM client implementations.
package llm

// Stop reasons reported by providers, normalized to these values.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	ID       string `json:"id,omitempty"` // Provider-assigned ID, echoed back for tool_result correlation
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

// NewToolCall builds a ToolCall, working around the anonymous Function
// struct that mirrors the OpenAI wire shape.
func NewToolCall(id, name string, args map[string]any) ToolCall {
	tc := ToolCall{ID: id}
	tc.Function.Name = name
	tc.Function.Arguments = args
	return tc
}

// ChatResponse is the unified response from any LLM provider.
// Wire format conversion happens at the provider boundary (anthropic.go).
type ChatResponse struct {
	Model   string
	Message Message

	// StopReason is why the model stopped: end_turn, tool_use,
	// max_tokens, or a provider-specific value.
	StopReason string

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}

// ToolUse reports whether the model stopped to request tool execution.
func (r *ChatResponse) ToolUse() bool {
	return r.StopReason == StopToolUse || len(r.Message.ToolCalls) > 0
}

// StreamEvent represents a single event in a streaming response.
type StreamEvent struct {
	Kind StreamEventKind

	// Token is set for KindToken events.
	Token string

	// Response is set for KindDone events (final summary).
	Response *ChatResponse
}

// StreamEventKind identifies the type of stream event.
type StreamEventKind int

const (
	// KindToken is an incremental text token from the model.
	KindToken StreamEventKind = iota

	// KindDone signals the stream is complete. Response carries final metadata.
	KindDone
)

// StreamCallback receives streaming events.
type StreamCallback func(event StreamEvent)
