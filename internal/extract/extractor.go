// Package extract parses LLM output text for embedded tool-call markers.
//
// The textual wire format is TOOL_CALL:<toolName>:<jsonObject>. The JSON
// boundary is found by brace-depth counting, not by regex, because tool
// arguments may contain nested objects. The same format string is documented
// in the prompts handed to the model (internal/prompt).
package extract

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"parley/internal/domain"
)

// markerPattern matches the tool-call marker and captures the tool name.
// Tool names are word characters only.
var markerPattern = regexp.MustCompile(`TOOL_CALL:(\w+):`)

// Extractor scans response text for tool invocations. Stateless; safe for
// concurrent use.
type Extractor struct {
	logger *slog.Logger
}

type Option func(*Extractor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the invocations whose markers appear in text, in marker
// order. A marker with a missing, unterminated, or unparseable JSON payload
// is skipped with a log entry; it never fails the scan and never affects
// sibling markers.
func (e *Extractor) Extract(text string) []domain.ToolInvocation {
	matches := markerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	invocations := make([]domain.ToolInvocation, 0, len(matches))
	for _, m := range matches {
		name := text[m[2]:m[3]]
		payload, ok := boundedObject(text[m[1]:])
		if !ok {
			e.log().Warn("skipping tool call: no terminated JSON object after marker", "tool", name)
			continue
		}
		if !json.Valid([]byte(payload)) {
			e.log().Warn("skipping tool call: payload is not valid JSON", "tool", name)
			continue
		}
		invocations = append(invocations, domain.ToolInvocation{
			ToolName:  name,
			Arguments: json.RawMessage(payload),
		})
	}
	if len(invocations) == 0 {
		return nil
	}
	return invocations
}

// boundedObject returns the first JSON object literal in s, located by brace
// depth: +1 on '{', -1 on '}', ending at the '}' that returns the depth to
// zero. Only leading whitespace may precede the opening brace.
func boundedObject(s string) (string, bool) {
	trimmed := strings.TrimLeftFunc(s, unicode.IsSpace)
	if trimmed == "" || trimmed[0] != '{' {
		return "", false
	}
	depth := 0
	for i := 0; i < len(trimmed); i++ {
		switch trimmed[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return trimmed[:i+1], true
			}
		}
	}
	// Depth never returned to zero: unterminated payload.
	return "", false
}

func (e *Extractor) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
