package prompt

import (
	"fmt"
	"strings"

	"parley/internal/domain"
)

// BuildAugmented assembles the prompt for the first model call of a turn:
// instruction block, tool catalog, then the user's message.
func BuildAugmented(instructions, catalogText, userText string) string {
	var sb strings.Builder

	sb.WriteString(instructions)
	sb.WriteString("\n\n[Available Tools]\n")
	sb.WriteString(catalogText)
	sb.WriteString("\n[End Tools]\n\n")
	sb.WriteString(userText)

	return sb.String()
}

// BuildCorrection assembles the prompt asking the model to repair a failed
// tool call. It embeds the failing tool's name, its arguments as JSON, and
// the raw error text.
func BuildCorrection(instructions, catalogText, userText string, inv domain.ToolInvocation, errText string) string {
	var sb strings.Builder

	sb.WriteString(instructions)
	sb.WriteString("\n\n[Available Tools]\n")
	sb.WriteString(catalogText)
	sb.WriteString("\n[End Tools]\n\n")
	sb.WriteString("[Original Question]\n")
	sb.WriteString(userText)
	sb.WriteString("\n[End Question]\n\n")
	sb.WriteString("[Failed Call]\n")
	sb.WriteString(fmt.Sprintf("tool: %s\n", inv.ToolName))
	sb.WriteString(fmt.Sprintf("arguments: %s\n", string(inv.Arguments)))
	sb.WriteString(fmt.Sprintf("error: %s\n", errText))
	sb.WriteString("[End Failed Call]")

	return sb.String()
}

// BuildAnswer assembles the prompt for the final natural-language answer
// after successful tool execution.
func BuildAnswer(instructions, userText, toolContext string) string {
	var sb strings.Builder

	sb.WriteString(instructions)
	sb.WriteString("\n\n[Tool Results]\n")
	sb.WriteString(toolContext)
	sb.WriteString("\n[End Results]\n\n")
	sb.WriteString("[Original Question]\n")
	sb.WriteString(userText)
	sb.WriteString("\n[End Question]")

	return sb.String()
}

// DegradedAnswer produces the canned reply used when the final-answer model
// call fails after tools already ran: the raw tool results are surfaced
// rather than discarded.
func DegradedAnswer(instructions, toolContext string) string {
	var sb strings.Builder

	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(toolContext)

	return sb.String()
}
