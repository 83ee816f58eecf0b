package tools

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/torqueworks/torque/internal/llm"
	"github.com/torqueworks/torque/internal/plan"
)

// ResultFunc receives each Execution as it settles, before the whole
// batch resolves. Invocations are serialized, so implementations may
// write to a stream without their own locking.
type ResultFunc func(Execution)

// Dispatcher runs all tool calls from a single model turn concurrently
// and waits for every one to settle before returning. Plan access is
// checked up front: denied calls short-circuit to an upgrade_required
// result without touching the executor. One tool's failure never cancels
// or blocks the others.
type Dispatcher struct {
	logger *slog.Logger
	exec   *Executor
}

// NewDispatcher creates a dispatcher over the given executor.
func NewDispatcher(logger *slog.Logger, exec *Executor) *Dispatcher {
	return &Dispatcher{
		logger: logger.With("component", "dispatch"),
		exec:   exec,
	}
}

// DispatchAll settles the whole batch and returns one Execution per call,
// in the batch's original order. onResult, when non-nil, fires once per
// call as it settles (settlement order, not batch order).
func (d *Dispatcher) DispatchAll(ctx context.Context, calls []llm.ToolCall, pl *plan.Plan, ec ExecContext, onResult ResultFunc) []Execution {
	if len(calls) == 0 {
		return nil
	}

	start := time.Now()
	results := make([]Execution, len(calls))

	// Serialize callback invocations so stream writers need no locking.
	var cbMu sync.Mutex
	emit := func(exec Execution) {
		if onResult == nil {
			return
		}
		cbMu.Lock()
		defer cbMu.Unlock()
		onResult(exec)
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		// Tier gate before any concurrency: denied calls never execute.
		if pl != nil && !pl.Allows(call.Function.Name) {
			d.logger.Info("tool denied by plan",
				"correlation_id", ec.CorrelationID,
				"tool", call.Function.Name,
				"plan", pl.Name,
			)
			results[i] = UpgradeRequired(call, pl.Name)
			emit(results[i])
			continue
		}

		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = d.exec.Execute(ctx, call, ec)
			emit(results[i])
		}(i, call)
	}
	wg.Wait()

	d.logger.Debug("batch settled",
		"correlation_id", ec.CorrelationID,
		"calls", len(calls),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return results
}
