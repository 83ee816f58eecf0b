// Package agent implements the exchange orchestrator: the bounded
// tool-use loop that turns one user message into a final answer. One
// exchange is one logical task; concurrency happens only inside the
// tool dispatch step. The loop is bounded by the caller's plan, never
// by wall clock, so worst-case cost stays predictable.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/torqueworks/torque/internal/config"
	"github.com/torqueworks/torque/internal/convo"
	"github.com/torqueworks/torque/internal/domains"
	"github.com/torqueworks/torque/internal/events"
	"github.com/torqueworks/torque/internal/evidence"
	"github.com/torqueworks/torque/internal/llm"
	"github.com/torqueworks/torque/internal/plan"
	"github.com/torqueworks/torque/internal/tools"
	"github.com/torqueworks/torque/internal/usage"
)

// ErrInsufficientFunds is returned when the caller's balance cannot
// cover even a minimal exchange. Checked once, before any model call.
var ErrInsufficientFunds = errors.New("insufficient balance for exchange")

// safeFallbackMessage is what callers see on a model-backend failure.
// Internal error text never reaches the wire.
const safeFallbackMessage = "Something went wrong while answering. You have not been charged for a reply. Please try again."

// exhaustedFallbackMessage covers the rare case where the model produced
// no text at all before the iteration cap.
const exhaustedFallbackMessage = "I ran out of research budget before finishing a full answer. Try a more specific question, or upgrade your plan for deeper research."

// preflightMinCents is the balance floor checked before any model call.
// Even a tool-free exchange on the cheapest model costs a few cents once
// rounding is applied, so anything below this cannot be paid for.
const preflightMinCents = 2

// Options wires the orchestrator's collaborators. Conversations,
// UsageStore, Balance, Enforcer, and Bus may each be nil; the
// corresponding behavior (persistence, usage records, balance gating,
// citation enforcement, events) is skipped.
type Options struct {
	Client        llm.Client
	Classifier    *domains.Classifier
	Executor      *tools.Executor
	Enforcer      *evidence.Enforcer
	Plans         plan.Table
	Conversations *convo.Store
	UsageStore    *usage.Store
	Balance       *usage.BalanceStore
	Bus           *events.Bus
	Model         string
	Pricing       map[string]config.PricingEntry
	Filter        config.FilterConfig
}

// Orchestrator runs exchanges. Safe for concurrent use; each Process
// call owns all of its mutable state.
type Orchestrator struct {
	logger     *slog.Logger
	client     llm.Client
	classifier *domains.Classifier
	executor   *tools.Executor
	dispatcher *tools.Dispatcher
	enforcer   *evidence.Enforcer
	plans      plan.Table
	convos     *convo.Store
	usageStore *usage.Store
	balance    *usage.BalanceStore
	bus        *events.Bus
	model      string
	pricing    map[string]config.PricingEntry
	filter     config.FilterConfig
}

// New creates an exchange orchestrator.
func New(logger *slog.Logger, opts Options) *Orchestrator {
	return &Orchestrator{
		logger:     logger.With("component", "agent"),
		client:     opts.Client,
		classifier: opts.Classifier,
		executor:   opts.Executor,
		dispatcher: tools.NewDispatcher(logger, opts.Executor),
		enforcer:   opts.Enforcer,
		plans:      opts.Plans,
		convos:     opts.Conversations,
		usageStore: opts.UsageStore,
		balance:    opts.Balance,
		bus:        opts.Bus,
		model:      opts.Model,
		pricing:    opts.Pricing,
		filter:     opts.Filter,
	}
}

// Process runs one complete exchange: preflight balance gate, domain
// classification, tool filtering, the bounded tool-use loop, the
// evidence enforcement pass, and the single end-of-exchange debit.
// Events stream to sink throughout; exactly one terminal Done or Error
// is emitted. The returned error is nil whenever Done was emitted.
func (o *Orchestrator) Process(ctx context.Context, req Request, sink Sink) (*Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		sink.Error("message is required")
		return nil, errors.New("empty message")
	}

	corrUUID, err := uuid.NewV7()
	if err != nil {
		sink.Error(safeFallbackMessage)
		return nil, fmt.Errorf("generate correlation ID: %w", err)
	}
	corrID := corrUUID.String()
	pl := o.plans.Get(req.PlanName)
	if pl == nil {
		// Nothing in the table matched and there is no default entry.
		// A misconfigured plans table must not panic the exchange.
		o.logger.Error("no plan available",
			"correlation_id", corrID,
			"plan", req.PlanName,
		)
		sink.Error(safeFallbackMessage)
		return nil, fmt.Errorf("plan %q not configured and no %q fallback", req.PlanName, plan.DefaultName)
	}
	start := time.Now()

	// Balance is read exactly once, here, and written exactly once at
	// the end. No intermediate reads or writes during the loop.
	if o.balance != nil {
		cents, err := o.balance.Get(ctx, req.CallerID)
		if err != nil {
			o.logger.Error("balance read failed", "correlation_id", corrID, "error", err)
			sink.Error(safeFallbackMessage)
			return nil, fmt.Errorf("read balance: %w", err)
		}
		if cents < preflightMinCents {
			sink.Error("Your balance is empty. Top up or wait for your monthly refill to keep asking questions.")
			return nil, ErrInsufficientFunds
		}
	}

	detected := o.classifier.Classify(req.Message)

	convID := req.ConversationID
	var history []llm.Message
	switch {
	case req.HistoryOverride != nil:
		history = req.HistoryOverride
	case o.convos != nil && convID != "":
		history, err = o.convos.Get(ctx, convID)
		if err != nil {
			o.logger.Error("conversation load failed", "correlation_id", corrID, "conversation_id", convID, "error", err)
			sink.Error(safeFallbackMessage)
			return nil, fmt.Errorf("load conversation: %w", err)
		}
	}
	if o.convos != nil && convID == "" {
		convID, err = o.convos.Create(ctx, req.CallerID, map[string]any{"plan": pl.Name})
		if err != nil {
			o.logger.Error("conversation create failed", "correlation_id", corrID, "error", err)
			sink.Error(safeFallbackMessage)
			return nil, fmt.Errorf("create conversation: %w", err)
		}
	}

	selected := tools.Select(o.executor.Registry(), detected, pl, o.filter)
	defs := tools.Defs(selected)

	sink.Connected(corrID, detected, convID)
	o.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindRequestStart,
		Data: map[string]any{
			"correlation_id":  corrID,
			"conversation_id": convID,
			"caller_id":       req.CallerID,
			"plan":            pl.Name,
		},
	})

	o.logger.Info("exchange started",
		"correlation_id", corrID,
		"conversation_id", convID,
		"plan", pl.Name,
		"domains", detected,
		"tools_available", len(selected),
		"history", len(history),
	)

	systemPrompt := buildSystemPrompt(detected, req.Vehicle)
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	ec := tools.ExecContext{
		CorrelationID: corrID,
		CallerVariant: req.Vehicle,
		CacheScopeKey: req.CallerID,
	}

	var ledger usage.Ledger
	var toolsUsed []ToolUse
	var answer string
	answered := false

	// Anthropic models routinely emit preamble text before tool_use
	// blocks, and the stop reason is only known once the turn ends.
	// Tokens are held per turn and flushed only when the turn resolves
	// to text, so research-iteration preamble never reaches the wire.
	var pending []string
	buffered := func(ev llm.StreamEvent) {
		if ev.Kind == llm.KindToken && ev.Token != "" {
			pending = append(pending, ev.Token)
		}
	}
	live := func(ev llm.StreamEvent) {
		if ev.Kind == llm.KindToken && ev.Token != "" {
			sink.Text(ev.Token)
		}
	}

	maxIter := pl.MaxToolCalls
	if maxIter < 1 {
		maxIter = 1
	}

	for i := range maxIter {
		if err := ctx.Err(); err != nil {
			sink.Error(safeFallbackMessage)
			return nil, fmt.Errorf("exchange cancelled (iter %d): %w", i, err)
		}

		pending = pending[:0]
		resp, err := o.modelTurn(ctx, corrID, i, messages, defs, pl, &ledger, buffered)
		if err != nil {
			sink.Error(safeFallbackMessage)
			return nil, err
		}

		if resp.StopReason != llm.StopToolUse || len(resp.Message.ToolCalls) == 0 {
			for _, tok := range pending {
				sink.Text(tok)
			}
			messages = append(messages, resp.Message)
			answer = resp.Message.Content
			answered = true
			break
		}

		sink.Phase("researching", "Looking things up")
		messages = append(messages, resp.Message)
		messages, toolsUsed = o.runToolBatch(ctx, resp.Message.ToolCalls, pl, ec, sink, messages, toolsUsed)
	}

	if !answered {
		// Iteration cap reached mid-research. One final call without
		// tools forces whatever answer the transcript supports; the
		// exchange must never dead-end with an error here.
		o.logger.Warn("iteration cap reached, forcing text response",
			"correlation_id", corrID,
			"max_tool_calls", maxIter,
		)
		// No tool defs on this call, so it can only stop with text and
		// streaming live is safe.
		resp, err := o.modelTurn(ctx, corrID, maxIter, messages, nil, pl, &ledger, live)
		if err != nil {
			answer = exhaustedFallbackMessage
		} else {
			messages = append(messages, resp.Message)
			answer = resp.Message.Content
		}
		if answer == "" {
			answer = exhaustedFallbackMessage
		}
	}

	result := &Result{
		CorrelationID:  corrID,
		ConversationID: convID,
		Answer:         answer,
		Domains:        detected,
		ToolsUsed:      toolsUsed,
	}

	if o.enforcer != nil {
		sink.Phase("verifying", "Checking sources")
		out := o.enforcer.Enforce(ctx, evidence.Input{
			UserMessage:  req.Message,
			Draft:        answer,
			Model:        o.model,
			SystemPrompt: systemPrompt,
			MaxTokens:    pl.MaxResponseTokens,
			Plan:         pl,
			Exec:         ec,
		}, &ledger)
		result.Answer = out.Answer
		result.Citations = out.Citations
		result.EvidenceTriggered = out.Triggered
	}

	result.InputTokens = ledger.InputTokens()
	result.OutputTokens = ledger.OutputTokens()
	result.ModelCalls = ledger.ModelCalls()
	result.CostCents = usage.ComputeCostCents(o.model, ledger.InputTokens(), ledger.OutputTokens(), o.pricing)

	o.settle(ctx, req, result)

	o.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindRequestComplete,
		Data: map[string]any{
			"correlation_id":   corrID,
			"model":            o.model,
			"iterations":       result.ModelCalls,
			"total_tokens_in":  result.InputTokens,
			"total_tokens_out": result.OutputTokens,
			"cost_cents":       result.CostCents,
			"elapsed_ms":       time.Since(start).Milliseconds(),
		},
	})

	o.logger.Info("exchange complete",
		"correlation_id", corrID,
		"model_calls", result.ModelCalls,
		"tools_used", len(result.ToolsUsed),
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"cost_cents", result.CostCents,
		"evidence", result.EvidenceTriggered,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	sink.Done(result)
	return result, nil
}

// modelTurn issues one model call and folds its token usage into the
// ledger. Model-backend failures are fatal to the exchange.
func (o *Orchestrator) modelTurn(ctx context.Context, corrID string, iter int, messages []llm.Message, defs []map[string]any, pl *plan.Plan, ledger *usage.Ledger, stream llm.StreamCallback) (*llm.ChatResponse, error) {
	o.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindLLMCall,
		Data:      map[string]any{"correlation_id": corrID, "iter": iter, "model": o.model},
	})

	turnStart := time.Now()
	resp, err := o.client.ChatStream(ctx, o.model, messages, defs, pl.MaxResponseTokens, stream)
	if err != nil {
		o.logger.Error("model call failed",
			"correlation_id", corrID,
			"iter", iter,
			"model", o.model,
			"error", err,
		)
		return nil, fmt.Errorf("model call (iter %d): %w", iter, err)
	}

	ledger.AddTurn(resp.InputTokens, resp.OutputTokens)

	o.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      events.KindLLMResponse,
		Data: map[string]any{
			"correlation_id": corrID,
			"iter":           iter,
			"model":          o.model,
			"tokens_in":      resp.InputTokens,
			"tokens_out":     resp.OutputTokens,
			"tool_calls":     len(resp.Message.ToolCalls),
			"stop_reason":    resp.StopReason,
		},
	})

	o.logger.Debug("model turn",
		"correlation_id", corrID,
		"iter", iter,
		"stop_reason", resp.StopReason,
		"tool_calls", len(resp.Message.ToolCalls),
		"elapsed", time.Since(turnStart).Round(time.Millisecond),
	)

	return resp, nil
}

// runToolBatch dispatches one model turn's tool calls in parallel and
// appends the complete result set to the transcript. Partial batches are
// never sent back to the model.
func (o *Orchestrator) runToolBatch(ctx context.Context, calls []llm.ToolCall, pl *plan.Plan, ec tools.ExecContext, sink Sink, messages []llm.Message, toolsUsed []ToolUse) ([]llm.Message, []ToolUse) {
	for _, tc := range calls {
		sink.ToolStart(tc.Function.Name, tc.ID)
		o.bus.Publish(events.Event{
			Timestamp: time.Now(),
			Source:    events.SourceDispatch,
			Kind:      events.KindToolCall,
			Data:      map[string]any{"correlation_id": ec.CorrelationID, "tool": tc.Function.Name},
		})
	}

	execs := o.dispatcher.DispatchAll(ctx, calls, pl, ec, func(ex tools.Execution) {
		sink.ToolResult(ex.Tool, ex.CallID, ex.OK, ex.CacheHit, ex.ErrKind)
		o.bus.Publish(events.Event{
			Timestamp: time.Now(),
			Source:    events.SourceDispatch,
			Kind:      events.KindToolDone,
			Data: map[string]any{
				"correlation_id": ec.CorrelationID,
				"tool":           ex.Tool,
				"ok":             ex.OK,
				"cache_hit":      ex.CacheHit,
				"duration_ms":    ex.Duration.Milliseconds(),
			},
		})
	})

	for _, ex := range execs {
		messages = append(messages, llm.Message{
			Role:       "tool",
			Content:    ex.Payload,
			ToolCallID: ex.CallID,
		})
		toolsUsed = append(toolsUsed, ToolUse{Name: ex.Tool, ArgKeys: ex.ArgKeys, Injected: ex.Injected, OK: ex.OK})
	}
	return messages, toolsUsed
}

// settle performs end-of-exchange persistence: the single balance debit,
// the usage record, and the conversation append. Failures here are
// logged but never fail the exchange; the caller already has an answer.
func (o *Orchestrator) settle(ctx context.Context, req Request, result *Result) {
	if o.balance != nil && result.CostCents > 0 {
		if err := o.balance.Debit(ctx, req.CallerID, result.CostCents); err != nil {
			o.logger.Warn("balance debit failed",
				"correlation_id", result.CorrelationID,
				"caller_id", req.CallerID,
				"cost_cents", result.CostCents,
				"error", err,
			)
		}
	}

	if o.usageStore != nil {
		err := o.usageStore.Record(ctx, usage.Record{
			CorrelationID:  result.CorrelationID,
			CallerID:       req.CallerID,
			ConversationID: result.ConversationID,
			Model:          o.model,
			InputTokens:    result.InputTokens,
			OutputTokens:   result.OutputTokens,
			CostUSD:        usage.ComputeCostUSD(o.model, result.InputTokens, result.OutputTokens, o.pricing),
		})
		if err != nil {
			o.logger.Warn("usage record failed", "correlation_id", result.CorrelationID, "error", err)
		}
	}

	if o.convos != nil && result.ConversationID != "" && req.HistoryOverride == nil {
		userMsg := llm.Message{Role: "user", Content: req.Message}
		assistantMsg := llm.Message{Role: "assistant", Content: result.Answer}
		if err := o.convos.Append(ctx, result.ConversationID, userMsg); err != nil {
			o.logger.Warn("conversation append failed", "correlation_id", result.CorrelationID, "error", err)
			return
		}
		if err := o.convos.Append(ctx, result.ConversationID, assistantMsg); err != nil {
			o.logger.Warn("conversation append failed", "correlation_id", result.CorrelationID, "error", err)
		}
	}
}
