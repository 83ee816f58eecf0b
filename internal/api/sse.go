package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/torqueworks/torque/internal/agent"
)

// sseWriteDeadline is how long a single streamed exchange may go between
// events before the connection is considered dead. Reset after every
// write, so long tool batches only need keepalives, not a huge budget.
const sseWriteDeadline = 120 * time.Second

// sseSink streams exchange events to one client as named SSE events.
// It guarantees the wire invariant: exactly one terminal event (done or
// error), and nothing after it.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger
	render  func(string) string // optional markdown renderer

	mu       sync.Mutex
	terminal bool
	gone     bool // write failed, client likely disconnected
}

func newSSESink(w http.ResponseWriter, flusher http.Flusher, logger *slog.Logger) *sseSink {
	return &sseSink{
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
		logger:  logger,
	}
}

// event writes one named SSE event. Safe to call after the client is
// gone; writes become no-ops.
func (s *sseSink) event(name string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLocked(name, payload)
}

func (s *sseSink) writeLocked(name string, payload any) {
	if s.gone {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Debug("failed to marshal SSE event", "event", name, "error", err)
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		// Client disconnected. In-flight work continues; we just stop
		// writing.
		s.logger.Debug("SSE write failed", "event", name, "error", err)
		s.gone = true
		return
	}
	s.flusher.Flush()

	// Reset the write deadline after every event so multi-iteration
	// tool loops don't trip the server's write timeout.
	if err := s.rc.SetWriteDeadline(time.Now().Add(sseWriteDeadline)); err != nil {
		s.logger.Debug("failed to reset write deadline", "error", err)
	}
}

// keepalive emits an SSE comment, resetting the write deadline.
func (s *sseSink) keepalive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone || s.terminal {
		return
	}
	if _, err := fmt.Fprintf(s.w, ": keepalive\n\n"); err != nil {
		s.gone = true
		return
	}
	s.flusher.Flush()
	if err := s.rc.SetWriteDeadline(time.Now().Add(sseWriteDeadline)); err != nil {
		s.logger.Debug("failed to reset write deadline", "error", err)
	}
}

func (s *sseSink) Connected(correlationID string, domains []string, conversationID string) {
	if domains == nil {
		domains = []string{}
	}
	s.event("connected", map[string]any{
		"correlationId":  correlationID,
		"domains":        domains,
		"conversationId": conversationID,
	})
}

func (s *sseSink) Text(fragment string) {
	s.event("text", map[string]any{"content": fragment})
}

func (s *sseSink) Phase(phase, label string) {
	s.event("phase", map[string]any{"phase": phase, "label": label})
}

func (s *sseSink) ToolStart(tool, callID string) {
	s.event("tool_start", map[string]any{"tool": tool, "callId": callID})
}

func (s *sseSink) ToolResult(tool, callID string, ok, cacheHit bool, errKind string) {
	payload := map[string]any{
		"tool":     tool,
		"callId":   callID,
		"success":  ok,
		"cacheHit": cacheHit,
	}
	if errKind != "" {
		payload["error"] = errKind
	}
	s.event("tool_result", payload)
}

func (s *sseSink) Done(result *agent.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal {
		return
	}
	s.terminal = true

	payload := map[string]any{
		"conversationId": result.ConversationID,
		"response":       result.Answer,
		"toolsUsed":      result.ToolNames(),
		"citations":      result.Citations,
		"usage": map[string]any{
			"costCents":    result.CostCents,
			"inputTokens":  result.InputTokens,
			"outputTokens": result.OutputTokens,
			"toolCalls":    len(result.ToolsUsed),
			"modelCalls":   result.ModelCalls,
		},
	}
	if s.render != nil {
		if html := s.render(result.Answer); html != "" {
			payload["responseHtml"] = html
		}
	}
	s.writeLocked("done", payload)
}

func (s *sseSink) Error(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal {
		return
	}
	s.terminal = true
	s.writeLocked("error", map[string]any{"message": message})
}

// handleStreamingChat runs the exchange through an SSE sink. Headers go
// out before the first event; any failure after that point is reported
// as an error event, never a status code.
func (s *Server) handleStreamingChat(w http.ResponseWriter, r *http.Request, agentReq agent.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorResponse(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := newSSESink(w, flusher, s.logger)
	sink.render = s.renderHTML

	// Comment keepalives cover the silent stretches while the model is
	// thinking, before the first token arrives.
	stopKeepalive := make(chan struct{})
	defer close(stopKeepalive)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sink.keepalive()
			case <-stopKeepalive:
				return
			}
		}
	}()

	// A client disconnect must not cancel in-flight model or tool work:
	// the cost is already incurred and has to be settled. The sink stops
	// writing once the connection is gone.
	ctx := context.WithoutCancel(r.Context())
	if _, err := s.orch.Process(ctx, agentReq, sink); err != nil {
		s.logger.Error("streamed exchange failed", "error", err)
	}
}
