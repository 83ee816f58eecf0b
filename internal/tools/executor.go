package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/torqueworks/torque/internal/llm"
)

// ExecContext carries per-exchange context into tool execution.
type ExecContext struct {
	// CorrelationID is the exchange's opaque trace token.
	CorrelationID string
	// CallerVariant is the caller's own vehicle variant slug, injected
	// into variant-taking tools when the model omits the argument.
	CallerVariant string
	// CacheScopeKey scopes backend caching, typically the caller ID.
	CacheScopeKey string
}

// Execution is the audited outcome of a single tool call. Payload is the
// serialized result fed back to the model — a success payload or a
// structured failure body, never an unhandled error. ArgKeys and Injected
// record argument key names only; raw values stay out of logs and metrics.
type Execution struct {
	CallID   string
	Tool     string
	OK       bool
	ErrKind  string // one of the ErrKind constants when !OK
	Payload  string
	CacheHit bool
	Duration time.Duration
	ArgKeys  []string
	Injected []string
}

// Executor normalizes and runs tool calls against the backend.
type Executor struct {
	logger  *slog.Logger
	reg     *Registry
	backend Backend
}

// NewExecutor creates a tool executor.
func NewExecutor(logger *slog.Logger, reg *Registry, backend Backend) *Executor {
	return &Executor{
		logger:  logger.With("component", "tools"),
		reg:     reg,
		backend: backend,
	}
}

// Registry returns the executor's tool catalog.
func (e *Executor) Registry() *Registry {
	return e.reg
}

// Execute runs one tool call. Failures of any kind — unknown tool,
// backend error, backend panic — come back as a structured failure
// Execution; this method never returns an error to the loop.
func (e *Executor) Execute(ctx context.Context, call llm.ToolCall, ec ExecContext) Execution {
	name := call.Function.Name
	exec := Execution{
		CallID: call.ID,
		Tool:   name,
	}

	tool := e.reg.Get(name)
	if tool == nil {
		e.logger.Warn("unknown tool requested",
			"correlation_id", ec.CorrelationID,
			"tool", name,
		)
		return e.fail(exec, ErrKindUnknownTool, (&ErrToolUnavailable{ToolName: name}).Error())
	}

	args, injected := normalizeArgs(tool, call.Function.Arguments, ec)
	exec.ArgKeys = sortedKeys(args)
	exec.Injected = injected

	start := time.Now()
	payload, cacheHit, err := e.invoke(ctx, name, args, ec)
	exec.Duration = time.Since(start)
	exec.CacheHit = cacheHit

	if err != nil {
		e.logger.Error("tool execution failed",
			"correlation_id", ec.CorrelationID,
			"tool", name,
			"arg_keys", exec.ArgKeys,
			"elapsed", exec.Duration.Round(time.Millisecond),
			"error", err,
		)
		return e.fail(exec, ErrKindExecutionFailed, err.Error())
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return e.fail(exec, ErrKindExecutionFailed, fmt.Sprintf("encode result: %v", err))
	}

	exec.OK = true
	exec.Payload = string(body)

	e.logger.Debug("tool execution done",
		"correlation_id", ec.CorrelationID,
		"tool", name,
		"arg_keys", exec.ArgKeys,
		"injected", exec.Injected,
		"cache_hit", exec.CacheHit,
		"elapsed", exec.Duration.Round(time.Millisecond),
	)
	return exec
}

// invoke calls the backend, converting panics into errors so a misbehaving
// lookup can never take down the loop.
func (e *Executor) invoke(ctx context.Context, name string, args map[string]any, ec ExecContext) (payload any, cacheHit bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			payload, cacheHit = nil, false
			err = fmt.Errorf("tool %s panicked: %v", name, p)
		}
	}()
	return e.backend.Invoke(ctx, name, args, Meta{
		CorrelationID: ec.CorrelationID,
		CacheScopeKey: ec.CacheScopeKey,
	})
}

// fail fills in a structured failure Execution. The payload shape
// {error, message} is what the model sees and explains to the user.
func (e *Executor) fail(exec Execution, kind, message string) Execution {
	exec.OK = false
	exec.ErrKind = kind
	body, _ := json.Marshal(map[string]string{
		"error":   kind,
		"message": message,
	})
	exec.Payload = string(body)
	return exec
}

// UpgradeRequired builds the structured denial result for a tool the
// caller's plan does not include. The dispatcher short-circuits these
// before execution begins.
func UpgradeRequired(call llm.ToolCall, planName string) Execution {
	body, _ := json.Marshal(map[string]string{
		"error":   ErrKindUpgradeRequired,
		"message": fmt.Sprintf("the %s tool is not included in the %s plan", call.Function.Name, planName),
	})
	return Execution{
		CallID:  call.ID,
		Tool:    call.Function.Name,
		OK:      false,
		ErrKind: ErrKindUpgradeRequired,
		Payload: string(body),
		ArgKeys: sortedKeys(call.Function.Arguments),
	}
}

// normalizeArgs copies the model-supplied arguments and injects known
// context fields the model omitted. Currently only the vehicle variant is
// injected, and only for tools whose schema declares the parameter.
// Returned injected lists which keys were system-supplied.
func normalizeArgs(tool *Tool, raw map[string]any, ec ExecContext) (map[string]any, []string) {
	args := make(map[string]any, len(raw)+1)
	for k, v := range raw {
		args[k] = v
	}

	var injected []string
	if ec.CallerVariant != "" && toolTakesParam(tool, "variant") {
		if v, ok := args["variant"]; !ok || v == "" {
			args["variant"] = ec.CallerVariant
			injected = append(injected, "variant")
		}
	}
	return args, injected
}

// toolTakesParam reports whether the tool's schema declares the named
// top-level property.
func toolTakesParam(tool *Tool, param string) bool {
	props, ok := tool.Parameters["properties"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = props[param]
	return ok
}
