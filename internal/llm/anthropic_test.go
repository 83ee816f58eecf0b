package llm

import (
	"testing"
)

func TestConvertToAnthropic(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "You are an automotive research assistant."},
		{Role: "user", Content: "Hello!"},
		{Role: "assistant", Content: "Hi there!"},
		{Role: "user", Content: "Is the S54 timing chain a known weak point?"},
	}

	result, system := convertToAnthropic(messages)

	if system != "You are an automotive research assistant." {
		t.Errorf("expected system prompt extracted, got %q", system)
	}

	if len(result) != 3 {
		t.Fatalf("expected 3 messages (no system), got %d", len(result))
	}

	if result[0].Role != "user" {
		t.Errorf("expected first message to be user, got %s", result[0].Role)
	}
}

func TestConvertToAnthropicWithToolCalls(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "You are an automotive research assistant."},
		{Role: "user", Content: "Any known issues with the N54?"},
		{
			Role: "assistant",
			ToolCalls: []ToolCall{
				NewToolCall("toolu_abc123", "known_issues", map[string]any{"variant": "bmw-335i-n54"}),
			},
		},
		{Role: "tool", Content: "HPFP failures, wastegate rattle.", ToolCallID: "toolu_abc123"},
	}

	result, system := convertToAnthropic(messages)

	if system != "You are an automotive research assistant." {
		t.Errorf("unexpected system: %q", system)
	}

	if len(result) != 3 { // user, assistant with tool_use, user with tool_result
		t.Fatalf("expected 3 messages, got %d", len(result))
	}

	// Check assistant message has tool_use blocks
	assistantContent, ok := result[1].Content.([]anthropicContent)
	if !ok {
		t.Fatal("expected assistant content to be []anthropicContent")
	}
	if len(assistantContent) != 1 {
		t.Fatalf("expected 1 content block, got %d", len(assistantContent))
	}
	if assistantContent[0].Type != "tool_use" {
		t.Errorf("expected tool_use block, got %s", assistantContent[0].Type)
	}
	if assistantContent[0].ID != "toolu_abc123" {
		t.Errorf("expected tool_use ID toolu_abc123, got %s", assistantContent[0].ID)
	}

	// Check tool result
	toolResultContent, ok := result[2].Content.([]anthropicContent)
	if !ok {
		t.Fatal("expected tool result content to be []anthropicContent")
	}
	if toolResultContent[0].Type != "tool_result" {
		t.Errorf("expected tool_result, got %s", toolResultContent[0].Type)
	}
	if toolResultContent[0].ToolUseID != "toolu_abc123" {
		t.Errorf("expected tool_use_id toolu_abc123, got %s", toolResultContent[0].ToolUseID)
	}
}

func TestConvertToolsToAnthropic(t *testing.T) {
	tools := []map[string]any{
		{
			"type": "function",
			"function": map[string]any{
				"name":        "vehicle_lookup",
				"description": "Look up a vehicle variant",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"variant": map[string]any{
							"type":        "string",
							"description": "The variant slug",
						},
					},
					"required": []string{"variant"},
				},
			},
		},
	}

	result := convertToolsToAnthropic(tools)
	if len(result) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result))
	}
	if result[0].Name != "vehicle_lookup" {
		t.Errorf("expected tool name vehicle_lookup, got %s", result[0].Name)
	}
	if result[0].Description != "Look up a vehicle variant" {
		t.Errorf("expected description, got %s", result[0].Description)
	}
}

func TestConvertFromAnthropic(t *testing.T) {
	resp := &anthropicResponse{
		Model: "claude-sonnet-4-20250514",
		Role:  "assistant",
		Content: []anthropicContent{
			{Type: "text", Text: "Let me check that for you."},
			{
				Type:  "tool_use",
				ID:    "toolu_xyz789",
				Name:  "known_issues",
				Input: map[string]any{"variant": "porsche-996-carrera"},
			},
		},
		StopReason: "tool_use",
	}

	result := convertFromAnthropic(resp)

	if result.Message.Content != "Let me check that for you." {
		t.Errorf("unexpected content: %q", result.Message.Content)
	}
	if result.StopReason != StopToolUse {
		t.Errorf("stop reason = %q, want tool_use", result.StopReason)
	}
	if !result.ToolUse() {
		t.Error("ToolUse() should report true for a tool_use stop")
	}
	if len(result.Message.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(result.Message.ToolCalls))
	}
	if result.Message.ToolCalls[0].ID != "toolu_xyz789" {
		t.Errorf("expected tool call ID toolu_xyz789, got %s", result.Message.ToolCalls[0].ID)
	}
	if result.Message.ToolCalls[0].Function.Name != "known_issues" {
		t.Errorf("expected known_issues, got %s", result.Message.ToolCalls[0].Function.Name)
	}
}

func TestAnthropicClientImplementsInterface(t *testing.T) {
	// Compile-time check that AnthropicClient implements Client
	var _ Client = (*AnthropicClient)(nil)
}

func TestToolUse_EndTurn(t *testing.T) {
	resp := &ChatResponse{StopReason: StopEndTurn}
	if resp.ToolUse() {
		t.Error("end_turn with no tool calls should not report tool use")
	}
}
