// Package api implements the HTTP API: the chat endpoint with its SSE
// streaming mode, usage and balance introspection, and the operational
// WebSocket event feed.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/yuin/goldmark"

	"github.com/torqueworks/torque/internal/agent"
	"github.com/torqueworks/torque/internal/buildinfo"
	"github.com/torqueworks/torque/internal/events"
	"github.com/torqueworks/torque/internal/usage"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address    string
	port       int
	orch       *agent.Orchestrator
	usageStore *usage.Store
	balance    *usage.BalanceStore
	bus        *events.Bus
	logger     *slog.Logger
	server     *http.Server
	markdown   goldmark.Markdown
}

// NewServer creates the API server. The usage store, balance store, and
// event bus are optional; their endpoints return 404 until wired.
func NewServer(address string, port int, orch *agent.Orchestrator, logger *slog.Logger) *Server {
	return &Server{
		address:  address,
		port:     port,
		orch:     orch,
		logger:   logger,
		markdown: goldmark.New(),
	}
}

// SetUsageStore wires the usage summary endpoints.
func (s *Server) SetUsageStore(us *usage.Store) {
	s.usageStore = us
}

// SetBalanceStore wires the balance endpoints.
func (s *Server) SetBalanceStore(bs *usage.BalanceStore) {
	s.balance = bs
}

// SetEventBus wires the operational WebSocket feed.
func (s *Server) SetEventBus(bus *events.Bus) {
	s.bus = bus
}

// Handler builds the route table. Split from Start for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/chat", s.handleChat)

	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	mux.HandleFunc("GET /v1/usage", s.handleUsageSummary)
	mux.HandleFunc("GET /v1/balance/{callerId}", s.handleBalanceGet)
	mux.HandleFunc("POST /v1/balance/{callerId}/credit", s.handleBalanceCredit)

	mux.HandleFunc("GET /v1/ops/events", s.handleOpsEvents)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Long for streaming responses
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Torque",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// ChatRequest is the inbound chat request.
type ChatRequest struct {
	Message        string `json:"message"`
	CallerID       string `json:"caller_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Plan           string `json:"plan,omitempty"`
	Vehicle        string `json:"vehicle,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
	HTML           bool   `json:"html,omitempty"`
}

// ChatResponse is the synchronous (non-streaming) response. It carries
// the same terminal fields the streaming done event does.
type ChatResponse struct {
	Response       string          `json:"response"`
	ResponseHTML   string          `json:"response_html,omitempty"`
	ConversationID string          `json:"conversation_id"`
	Context        ChatContext     `json:"context"`
	Usage          ChatUsage       `json:"usage"`
	Citations      []string        `json:"citations,omitempty"`
	ToolsUsed      []agent.ToolUse `json:"tools_used,omitempty"`
}

// ChatContext carries trace metadata for the exchange.
type ChatContext struct {
	Domains       []string `json:"domains"`
	ToolsUsed     []string `json:"tools_used"`
	CorrelationID string   `json:"correlation_id"`
}

// ChatUsage carries the exchange's accounting totals.
type ChatUsage struct {
	CostCents    int64 `json:"cost_cents"`
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	ToolCalls    int   `json:"tool_calls"`
	ModelCalls   int   `json:"model_calls"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.CallerID == "" {
		s.errorResponse(w, http.StatusBadRequest, "caller_id is required")
		return
	}

	agentReq := agent.Request{
		Message:        req.Message,
		CallerID:       req.CallerID,
		ConversationID: req.ConversationID,
		PlanName:       req.Plan,
		Vehicle:        req.Vehicle,
	}

	if req.Stream {
		s.handleStreamingChat(w, r, agentReq)
		return
	}

	var sink agent.BufferSink
	result, err := s.orch.Process(r.Context(), agentReq, &sink)
	if err != nil {
		if errors.Is(err, agent.ErrInsufficientFunds) {
			s.errorResponse(w, http.StatusPaymentRequired, sink.ErrMessage)
			return
		}
		s.logger.Error("exchange failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, sink.ErrMessage)
		return
	}

	resp := ChatResponse{
		Response:       result.Answer,
		ConversationID: result.ConversationID,
		Context: ChatContext{
			Domains:       result.Domains,
			ToolsUsed:     result.ToolNames(),
			CorrelationID: result.CorrelationID,
		},
		Usage: ChatUsage{
			CostCents:    result.CostCents,
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
			ToolCalls:    len(result.ToolsUsed),
			ModelCalls:   result.ModelCalls,
		},
		Citations: result.Citations,
		ToolsUsed: result.ToolsUsed,
	}
	if req.HTML {
		resp.ResponseHTML = s.renderHTML(result.Answer)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

// renderHTML converts the markdown answer to HTML. Rendering failures
// fall back to empty, leaving the plain text field authoritative.
func (s *Server) renderHTML(text string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		s.logger.Debug("markdown render failed", "error", err)
		return ""
	}
	return buf.String()
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	if s.usageStore == nil {
		s.errorResponse(w, http.StatusNotFound, "usage store not configured")
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.errorResponse(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		hours = n
	}

	end := time.Now().UTC().Add(time.Minute)
	start := end.Add(-time.Duration(hours) * time.Hour)

	total, err := s.usageStore.Summary(start, end)
	if err != nil {
		s.logger.Error("usage summary failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "usage summary failed")
		return
	}
	byModel, err := s.usageStore.SummaryByModel(start, end)
	if err != nil {
		s.logger.Error("usage summary failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "usage summary failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"window_hours": hours,
		"total":        total,
		"by_model":     byModel,
	}, s.logger)
}

func (s *Server) handleBalanceGet(w http.ResponseWriter, r *http.Request) {
	if s.balance == nil {
		s.errorResponse(w, http.StatusNotFound, "balance store not configured")
		return
	}
	callerID := r.PathValue("callerId")

	cents, err := s.balance.Get(r.Context(), callerID)
	if err != nil {
		s.logger.Error("balance read failed", "caller_id", callerID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "balance read failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"caller_id":     callerID,
		"balance_cents": cents,
	}, s.logger)
}

func (s *Server) handleBalanceCredit(w http.ResponseWriter, r *http.Request) {
	if s.balance == nil {
		s.errorResponse(w, http.StatusNotFound, "balance store not configured")
		return
	}
	callerID := r.PathValue("callerId")

	var req struct {
		Cents int64 `json:"cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.balance.Credit(r.Context(), callerID, req.Cents); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := s.balance.Get(r.Context(), callerID)
	if err != nil {
		s.logger.Error("balance read failed", "caller_id", callerID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "balance read failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"caller_id":     callerID,
		"balance_cents": cents,
	}, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}
