package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/torqueworks/torque/internal/llm"
)

// fakeBackend scripts per-tool behavior for executor and dispatcher tests.
type fakeBackend struct {
	payloads map[string]any
	errs     map[string]error
	panics   map[string]string
	cacheHit map[string]bool

	mu    sync.Mutex
	calls []string
	args  []map[string]any
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		payloads: make(map[string]any),
		errs:     make(map[string]error),
		panics:   make(map[string]string),
		cacheHit: make(map[string]bool),
	}
}

func (f *fakeBackend) Invoke(ctx context.Context, name string, args map[string]any, meta Meta) (any, bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	f.mu.Unlock()

	if msg, ok := f.panics[name]; ok {
		panic(msg)
	}
	if err, ok := f.errs[name]; ok {
		return nil, false, err
	}
	payload, ok := f.payloads[name]
	if !ok {
		payload = map[string]any{"ok": true}
	}
	return payload, f.cacheHit[name], nil
}

func testExecutor(backend Backend) *Executor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExecutor(logger, Catalog(), backend)
}

func TestExecute_Success(t *testing.T) {
	backend := newFakeBackend()
	backend.payloads[ToolKnownIssues] = map[string]any{"issues": []string{"subframe cracking"}}
	backend.cacheHit[ToolKnownIssues] = true
	exec := testExecutor(backend)

	call := llm.NewToolCall("toolu_1", ToolKnownIssues, map[string]any{"variant": "bmw-e46-m3"})
	got := exec.Execute(context.Background(), call, ExecContext{CorrelationID: "x1"})

	if !got.OK {
		t.Fatalf("expected success, got %+v", got)
	}
	if !got.CacheHit {
		t.Error("cache hit should be recorded")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(got.Payload), &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if !reflect.DeepEqual(got.ArgKeys, []string{"variant"}) {
		t.Errorf("arg keys = %v, want [variant]", got.ArgKeys)
	}
	if len(got.Injected) != 0 {
		t.Errorf("model-supplied variant should not be marked injected, got %v", got.Injected)
	}
}

func TestExecute_InjectsCallerVariant(t *testing.T) {
	backend := newFakeBackend()
	exec := testExecutor(backend)

	call := llm.NewToolCall("toolu_2", ToolKnownIssues, nil)
	got := exec.Execute(context.Background(), call, ExecContext{
		CorrelationID: "x2",
		CallerVariant: "porsche-997-gt3",
	})

	if !got.OK {
		t.Fatalf("expected success, got %+v", got)
	}
	if !reflect.DeepEqual(got.Injected, []string{"variant"}) {
		t.Errorf("injected = %v, want [variant]", got.Injected)
	}
	if backend.args[0]["variant"] != "porsche-997-gt3" {
		t.Errorf("backend should see injected variant, got %v", backend.args[0])
	}
}

func TestExecute_NoInjectionForVariantlessTool(t *testing.T) {
	backend := newFakeBackend()
	exec := testExecutor(backend)

	call := llm.NewToolCall("toolu_3", ToolEventsLookup, map[string]any{"location": "austin"})
	got := exec.Execute(context.Background(), call, ExecContext{CallerVariant: "mazda-nd-miata"})

	if len(got.Injected) != 0 {
		t.Errorf("events_lookup has no variant param, injected = %v", got.Injected)
	}
	if _, ok := backend.args[0]["variant"]; ok {
		t.Error("variant must not leak into tools that do not declare it")
	}
}

func TestExecute_BackendError(t *testing.T) {
	backend := newFakeBackend()
	backend.errs[ToolDynoRuns] = errors.New("upstream timeout")
	exec := testExecutor(backend)

	call := llm.NewToolCall("toolu_4", ToolDynoRuns, map[string]any{"variant": "vw-mk7-gti"})
	got := exec.Execute(context.Background(), call, ExecContext{})

	if got.OK {
		t.Fatal("backend error should produce a failure execution")
	}
	if got.ErrKind != ErrKindExecutionFailed {
		t.Errorf("err kind = %q, want execution_failed", got.ErrKind)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(got.Payload), &body); err != nil {
		t.Fatalf("failure payload not JSON: %v", err)
	}
	if body["error"] != ErrKindExecutionFailed {
		t.Errorf("payload error = %q", body["error"])
	}
}

func TestExecute_BackendPanicIsCaught(t *testing.T) {
	backend := newFakeBackend()
	backend.panics[ToolLapTimes] = "index out of range"
	exec := testExecutor(backend)

	call := llm.NewToolCall("toolu_5", ToolLapTimes, map[string]any{"variant": "gt3"})
	got := exec.Execute(context.Background(), call, ExecContext{})

	if got.OK {
		t.Fatal("panic should produce a failure execution, not propagate")
	}
	if got.ErrKind != ErrKindExecutionFailed {
		t.Errorf("err kind = %q", got.ErrKind)
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	exec := testExecutor(newFakeBackend())

	call := llm.NewToolCall("toolu_6", "order_pizza", nil)
	got := exec.Execute(context.Background(), call, ExecContext{})

	if got.OK || got.ErrKind != ErrKindUnknownTool {
		t.Errorf("unknown tool should fail with unknown_tool, got %+v", got)
	}
}
