package prompt

// Block names known to the library.
const (
	BlockAugment    = "augment"
	BlockCorrection = "correction"
	BlockAnswer     = "answer"
	BlockDegraded   = "degraded"
)

// defaultAugment instructs the model how to request tool calls.
const defaultAugment = `You are a helpful assistant with access to external tools.

To call a tool, reply with a line in exactly this format:
TOOL_CALL:<toolName>:<json arguments>

Use one line per tool call. The arguments must be a single JSON object
matching the tool's input schema. If no tool is needed, answer the user
directly in natural language and do not emit a TOOL_CALL line.`

// defaultCorrection instructs the model how to repair a failed tool call.
const defaultCorrection = `A tool call you requested has failed. Review the error message and the
tool documentation, then reply with a corrected call in the format:
TOOL_CALL:<toolName>:<json arguments>

If the failure cannot be fixed by changing the tool or its arguments,
reply with exactly:
ERROR_UNABLE_TO_FIX`

// defaultAnswer instructs the model to compose the final reply from tool output.
const defaultAnswer = `Using the tool results below, answer the user's question in natural
language. Do not mention the tool invocation mechanics.`

// defaultDegraded prefixes raw tool results when the final answer cannot be composed.
const defaultDegraded = `I could not compose a full answer, but the requested tools ran
successfully. Raw results:`

// defaults maps block names to their compiled-in instruction text.
var defaults = map[string]string{
	BlockAugment:    defaultAugment,
	BlockCorrection: defaultCorrection,
	BlockAnswer:     defaultAnswer,
	BlockDegraded:   defaultDegraded,
}
