package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/torqueworks/torque/internal/events"
	"github.com/torqueworks/torque/internal/llm"
	"github.com/torqueworks/torque/internal/plan"
	"github.com/torqueworks/torque/internal/tools"
	"github.com/torqueworks/torque/internal/usage"
)

// evidenceSources lists fetch attempts in priority order. Each is gated
// by the caller's plan and falls through silently on failure.
var evidenceSources = []string{
	tools.ToolLapTimes,
	tools.ToolDynoRuns,
	tools.ToolKnowledgeSearch,
}

// citationMarker matches inline bracketed citations like
// [lap_times: Nürburgring GP 2023] or [source: forum thread].
var citationMarker = regexp.MustCompile(`\[[^\[\]]{2,120}\]`)

// Input carries everything the enforcement pass needs from the exchange.
type Input struct {
	UserMessage  string
	Draft        string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Plan         *plan.Plan
	Exec         tools.ExecContext
}

// Outcome reports what the pass did. Answer always holds a usable final
// answer: the revised text when enforcement succeeded, otherwise the
// original draft.
type Outcome struct {
	Answer     string
	Triggered  bool
	Categories []string
	SourceTool string
	Citations  []string
}

// Enforcer runs the citation enforcement pass.
type Enforcer struct {
	logger     *slog.Logger
	classifier *Classifier
	client     llm.Client
	executor   *tools.Executor
	bus        *events.Bus
}

// NewEnforcer creates an enforcement pass. bus may be nil.
func NewEnforcer(logger *slog.Logger, classifier *Classifier, client llm.Client, executor *tools.Executor, bus *events.Bus) *Enforcer {
	return &Enforcer{
		logger:     logger.With("component", "evidence"),
		classifier: classifier,
		client:     client,
		executor:   executor,
		bus:        bus,
	}
}

// Enforce classifies the user message and, when a risk category
// matches and evidence can be fetched, issues one additional model call
// demanding inline citations. Its tokens are added to ledger. The
// original draft is preserved on every failure path.
func (e *Enforcer) Enforce(ctx context.Context, in Input, ledger *usage.Ledger) Outcome {
	out := Outcome{Answer: in.Draft}

	cats := e.classifier.Classify(in.UserMessage)
	if len(cats) == 0 {
		return out
	}
	out.Categories = cats

	payload, sourceTool := e.fetchEvidence(ctx, in)
	if payload == "" {
		e.logger.Debug("no evidence found, keeping draft",
			"correlation_id", in.Exec.CorrelationID,
			"categories", cats,
		)
		return out
	}

	revised, err := e.revise(ctx, in, payload, ledger)
	if err != nil {
		e.logger.Warn("evidence revision failed, keeping draft",
			"correlation_id", in.Exec.CorrelationID,
			"error", err,
		)
		return out
	}
	if revised == "" {
		return out
	}

	out.Answer = revised
	out.Triggered = true
	out.SourceTool = sourceTool
	out.Citations = citationMarker.FindAllString(revised, -1)

	e.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceEvidence,
		Kind:      events.KindEvidenceTriggered,
		Data: map[string]any{
			"correlation_id": in.Exec.CorrelationID,
			"categories":     cats,
			"fetched_tool":   sourceTool,
		},
	})

	return out
}

// fetchEvidence tries each source in priority order. Plan denial and
// execution failure both fall through to the next source.
func (e *Enforcer) fetchEvidence(ctx context.Context, in Input) (payload, sourceTool string) {
	for _, name := range evidenceSources {
		if !in.Plan.Allows(name) {
			continue
		}

		args := map[string]any{}
		if name == tools.ToolKnowledgeSearch {
			args["query"] = in.UserMessage
		}

		call := llm.NewToolCall("evidence-"+name, name, args)
		exec := e.executor.Execute(ctx, call, in.Exec)
		if !exec.OK || exec.Payload == "" || exec.Payload == "null" {
			continue
		}
		return exec.Payload, name
	}
	return "", ""
}

// revise issues the single enforcement model call: the original system
// prompt augmented with a citation requirement, a user turn carrying the
// evidence, and the draft answer to rework.
func (e *Enforcer) revise(ctx context.Context, in Input, payload string, ledger *usage.Ledger) (string, error) {
	system := in.SystemPrompt + "\n\n" +
		"Revise the draft answer below using the supplied evidence. " +
		"Every factual claim about reliability, performance figures, legality, or lap times " +
		"must carry an inline citation in square brackets naming its source. " +
		"Do not invent sources. Keep the answer's tone and length close to the draft."

	user := fmt.Sprintf("Original question:\n%s\n\nDraft answer:\n%s\n\nEvidence:\n%s",
		in.UserMessage, in.Draft, payload)

	messages := []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	resp, err := e.client.Chat(ctx, in.Model, messages, nil, in.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("enforcement model call: %w", err)
	}

	ledger.AddTurn(resp.InputTokens, resp.OutputTokens)

	return resp.Message.Content, nil
}
