// Package tools executes structured tool invocations against the remote
// endpoint and classifies failures into the kinds the self-correction loop
// distinguishes.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"parley/internal/domain"
	"parley/internal/mcp"
)

// Caller is the slice of the remote client the executor needs.
type Caller interface {
	CallTool(ctx context.Context, name string, arguments json.RawMessage) (*mcp.CallResult, error)
}

// Executor runs one invocation at a time against the remote endpoint.
// Invocations within an orchestration pass are sequential, never concurrent;
// the underlying client correlates them by monotonic request IDs.
type Executor struct {
	caller  Caller
	catalog *Catalog // optional; supplies input schemas for pre-validation
	logger  *slog.Logger
}

type ExecutorOption func(*Executor)

// WithCatalog enables argument pre-validation against the catalog's cached
// input schemas.
func WithCatalog(c *Catalog) ExecutorOption {
	return func(e *Executor) { e.catalog = c }
}

func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor backed by the given remote caller.
// Panics if caller is nil.
func NewExecutor(caller Caller, opts ...ExecutorOption) *Executor {
	if caller == nil {
		panic("executor: caller must not be nil")
	}
	e := &Executor{caller: caller}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute calls the remote tool and returns the first text content element
// of a successful result. Failures come back as *ValidationError,
// *ProtocolError, *MalformedError, or *TransportError.
func (e *Executor) Execute(ctx context.Context, inv domain.ToolInvocation) (string, error) {
	if e.catalog != nil {
		if schema, ok := e.catalog.SchemaFor(inv.ToolName); ok {
			if err := ValidateArguments(inv.Arguments, schema); err != nil {
				if errors.Is(err, ErrSchemaUnusable) {
					// A broken advertised schema must not block the call.
					e.log().Warn("skipping argument validation", "tool", inv.ToolName, "error", err)
				} else {
					return "", &ValidationError{Tool: inv.ToolName, Err: err}
				}
			}
		}
	}

	result, err := e.caller.CallTool(ctx, inv.ToolName, inv.Arguments)
	if err != nil {
		var rpcErr *mcp.RPCError
		if errors.As(err, &rpcErr) {
			return "", &ProtocolError{Tool: inv.ToolName, Code: rpcErr.Code, Message: rpcErr.Message}
		}
		return "", &TransportError{Tool: inv.ToolName, Err: err}
	}

	if result.IsError {
		msg := firstText(result)
		if msg == "" {
			msg = "tool reported an error without explanation"
		}
		return "", &ProtocolError{Tool: inv.ToolName, Message: msg}
	}

	text := firstText(result)
	if text == "" {
		return "", &MalformedError{Tool: inv.ToolName}
	}
	e.log().Debug("tool executed", "tool", inv.ToolName)
	return text, nil
}

// firstText returns the first text content element, or "" when none exists.
func firstText(result *mcp.CallResult) string {
	for _, item := range result.Content {
		if item.Type == "text" && item.Text != "" {
			return item.Text
		}
	}
	return ""
}

func (e *Executor) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
