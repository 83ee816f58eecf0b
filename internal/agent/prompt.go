package agent

import (
	"fmt"
	"strings"
)

const basePersona = `You are Torque, an assistant for car enthusiasts. You answer questions about vehicles, modifications, performance, maintenance, buying decisions, and track driving.

Ground your answers in data from the available tools rather than memory whenever a tool covers the question. When you quote figures (power, torque, lap times, prices), say where they came from. Be direct about uncertainty and about the difference between measured data and community folklore. Never invent sources.`

// buildSystemPrompt assembles the per-exchange system instruction:
// the persona, the caller's vehicle context when known, and a nudge
// toward the detected topic areas.
func buildSystemPrompt(detected []string, vehicle string) string {
	var sb strings.Builder
	sb.WriteString(basePersona)

	if vehicle != "" {
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "The user's current vehicle is %q. When they ask about \"my car\" or omit a vehicle, assume this one.", vehicle)
	}

	if len(detected) > 0 {
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "This question appears to concern: %s.", strings.Join(detected, ", "))
	}

	return sb.String()
}
