// Package prompt formats the text handed to the inference engine.
package prompt

import "strings"

// Section markers of the chat template.
const (
	SystemMarker    = "[SYSTEM]"
	UserMarker      = "[USER]"
	AssistantMarker = "[ASSISTANT]"
)

// Build lays out the optional system instructions, the user message and the
// assistant marker. An empty system prompt drops the system section.
func Build(userMessage, systemPrompt string) string {
	var sb strings.Builder
	if systemPrompt != "" {
		sb.WriteString(SystemMarker)
		sb.WriteString("\n")
		sb.WriteString(systemPrompt)
		sb.WriteString("\n\n")
	}
	sb.WriteString(UserMarker)
	sb.WriteString("\n")
	sb.WriteString(userMessage)
	sb.WriteString("\n\n")
	sb.WriteString(AssistantMarker)
	return sb.String()
}
