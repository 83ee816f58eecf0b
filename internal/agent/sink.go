package agent

// Sink receives incremental exchange events. The streaming HTTP handler
// implements it over SSE; the buffered variant backs the synchronous
// JSON path and the CLI. Implementations are called from a single
// goroutine except ToolStart/ToolResult, which may arrive from the
// dispatcher's callback goroutine and must be safe for that.
type Sink interface {
	// Connected is emitted exactly once, before any other event.
	Connected(correlationID string, domains []string, conversationID string)

	// Text delivers an incremental answer fragment.
	Text(fragment string)

	// Phase delivers a coarse best-effort progress label.
	Phase(phase, label string)

	// ToolStart is emitted once per tool call before execution.
	ToolStart(tool, callID string)

	// ToolResult is emitted once per tool call after it settles. errKind
	// is empty on success.
	ToolResult(tool, callID string, ok, cacheHit bool, errKind string)

	// Done is the success terminal event. Exactly one of Done or Error
	// is emitted per exchange.
	Done(result *Result)

	// Error is the failure terminal event.
	Error(message string)
}

// BufferSink accumulates events in memory for the non-streaming path.
// Not safe for use across exchanges.
type BufferSink struct {
	CorrelationID  string
	Domains        []string
	ConversationID string
	Fragments      []string
	Phases         []string
	ToolStarts     []string
	ToolResults    []string
	Result         *Result
	ErrMessage     string
	terminal       bool
}

func (b *BufferSink) Connected(correlationID string, domains []string, conversationID string) {
	b.CorrelationID = correlationID
	b.Domains = domains
	b.ConversationID = conversationID
}

func (b *BufferSink) Text(fragment string) {
	b.Fragments = append(b.Fragments, fragment)
}

func (b *BufferSink) Phase(phase, label string) {
	b.Phases = append(b.Phases, phase)
}

func (b *BufferSink) ToolStart(tool, callID string) {
	b.ToolStarts = append(b.ToolStarts, callID)
}

func (b *BufferSink) ToolResult(tool, callID string, ok, cacheHit bool, errKind string) {
	b.ToolResults = append(b.ToolResults, callID)
}

func (b *BufferSink) Done(result *Result) {
	if b.terminal {
		return
	}
	b.terminal = true
	b.Result = result
}

func (b *BufferSink) Error(message string) {
	if b.terminal {
		return
	}
	b.terminal = true
	b.ErrMessage = message
}

// Terminal reports whether a terminal event has been received.
func (b *BufferSink) Terminal() bool { return b.terminal }
