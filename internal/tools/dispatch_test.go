package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torqueworks/torque/internal/llm"
)

func testDispatcher(backend Backend) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(logger, NewExecutor(logger, Catalog(), backend))
}

func TestDispatchAll_OneResultPerCall(t *testing.T) {
	backend := newFakeBackend()
	backend.errs[ToolDynoRuns] = errors.New("boom")
	backend.panics[ToolLapTimes] = "nil deref"
	d := testDispatcher(backend)
	pro := testPlans(t).Get("pro")

	calls := []llm.ToolCall{
		llm.NewToolCall("c1", ToolVehicleLookup, map[string]any{"variant": "gt3"}),
		llm.NewToolCall("c2", ToolDynoRuns, map[string]any{"variant": "gt3"}),
		llm.NewToolCall("c3", ToolLapTimes, map[string]any{"variant": "gt3"}),
		llm.NewToolCall("c4", ToolKnowledgeSearch, map[string]any{"query": "gt3 buyers guide"}),
	}

	results := d.DispatchAll(context.Background(), calls, pro, ExecContext{}, nil)

	if len(results) != len(calls) {
		t.Fatalf("got %d results for %d calls", len(results), len(calls))
	}
	for i, res := range results {
		if res.CallID != calls[i].ID {
			t.Errorf("result %d: call id %q, want %q (batch order preserved)", i, res.CallID, calls[i].ID)
		}
		if res.Payload == "" {
			t.Errorf("result %d: empty payload — a call was left unresolved", i)
		}
	}
	if !results[0].OK || !results[3].OK {
		t.Error("healthy calls should succeed despite sibling failures")
	}
	if results[1].OK || results[2].OK {
		t.Error("failing calls should settle as failures")
	}
}

func TestDispatchAll_PlanDenialShortCircuits(t *testing.T) {
	backend := newFakeBackend()
	d := testDispatcher(backend)
	free := testPlans(t).Get("free")

	calls := []llm.ToolCall{
		llm.NewToolCall("c1", ToolVehicleLookup, map[string]any{"variant": "gt3"}),
		llm.NewToolCall("c2", ToolLapTimes, map[string]any{"variant": "gt3"}),
	}

	results := d.DispatchAll(context.Background(), calls, free, ExecContext{}, nil)

	if results[1].ErrKind != ErrKindUpgradeRequired {
		t.Errorf("plan-denied call should report upgrade_required, got %+v", results[1])
	}
	for _, name := range backend.calls {
		if name == ToolLapTimes {
			t.Error("denied call must never reach the backend")
		}
	}
}

func TestDispatchAll_MixedBatchSpec(t *testing.T) {
	// Spec scenario: one denied, one throws, one succeeds → exactly 3
	// results, one of each kind.
	backend := newFakeBackend()
	backend.errs[ToolKnownIssues] = errors.New("db down")
	d := testDispatcher(backend)
	free := testPlans(t).Get("free")

	calls := []llm.ToolCall{
		llm.NewToolCall("c1", ToolLapTimes, map[string]any{"variant": "m4"}),    // denied for free
		llm.NewToolCall("c2", ToolKnownIssues, map[string]any{"variant": "m4"}), // throws
		llm.NewToolCall("c3", ToolVehicleLookup, map[string]any{"variant": "m4"}),
	}

	results := d.DispatchAll(context.Background(), calls, free, ExecContext{}, nil)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].ErrKind != ErrKindUpgradeRequired {
		t.Errorf("c1 = %+v, want upgrade_required", results[0])
	}
	if results[1].ErrKind != ErrKindExecutionFailed {
		t.Errorf("c2 = %+v, want execution_failed", results[1])
	}
	if !results[2].OK {
		t.Errorf("c3 = %+v, want success", results[2])
	}
}

func TestDispatchAll_RunsConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	backend := &slowBackend{
		delay: 50 * time.Millisecond,
		onInvoke: func() {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
		},
		onDone: func() { inFlight.Add(-1) },
	}
	d := testDispatcher(backend)
	pro := testPlans(t).Get("pro")

	calls := []llm.ToolCall{
		llm.NewToolCall("c1", ToolVehicleLookup, nil),
		llm.NewToolCall("c2", ToolKnownIssues, nil),
		llm.NewToolCall("c3", ToolExpertReviews, nil),
	}

	start := time.Now()
	d.DispatchAll(context.Background(), calls, pro, ExecContext{}, nil)
	elapsed := time.Since(start)

	if peak.Load() < 2 {
		t.Errorf("peak concurrency = %d, want >= 2", peak.Load())
	}
	if elapsed > 140*time.Millisecond {
		t.Errorf("batch of 3 50ms calls took %v; not parallel", elapsed)
	}
}

func TestDispatchAll_CallbackFiresPerResult(t *testing.T) {
	backend := newFakeBackend()
	d := testDispatcher(backend)
	free := testPlans(t).Get("free")

	calls := []llm.ToolCall{
		llm.NewToolCall("c1", ToolVehicleLookup, nil),
		llm.NewToolCall("c2", ToolLapTimes, nil), // denied
	}

	seen := make(map[string]bool)
	d.DispatchAll(context.Background(), calls, free, ExecContext{}, func(exec Execution) {
		seen[exec.CallID] = true
	})

	if !seen["c1"] || !seen["c2"] {
		t.Errorf("callback should fire for every call including denials, saw %v", seen)
	}
}

// slowBackend delays each invocation to make concurrency observable.
type slowBackend struct {
	delay    time.Duration
	onInvoke func()
	onDone   func()
}

func (s *slowBackend) Invoke(ctx context.Context, name string, args map[string]any, meta Meta) (any, bool, error) {
	if s.onInvoke != nil {
		s.onInvoke()
	}
	defer func() {
		if s.onDone != nil {
			s.onDone()
		}
	}()
	time.Sleep(s.delay)
	return map[string]any{"ok": true}, false, nil
}
