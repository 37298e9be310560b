// Package convo drives one user turn end to end: tool augmentation,
// invocation extraction, execution, self-correction, and the final
// assistant answer.
package convo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"parley/internal/domain"
	"parley/internal/extract"
	"parley/internal/llm"
	"parley/internal/prompt"
	"parley/internal/tools"
)

// correctionSentinel is the literal the model emits to declare a tool error
// unrecoverable.
const correctionSentinel = "ERROR_UNABLE_TO_FIX"

// catalogUnavailableText replaces the catalog section when tools/list fails.
const catalogUnavailableText = "(tool catalog temporarily unavailable)"

// defaultMaxAttempts bounds correction cycles per turn.
const defaultMaxAttempts = 2

// State is the observable phase of the self-correction loop.
type State string

const (
	StateExecuting  State = "executing"
	StateCorrecting State = "correcting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Sender is the outbound LLM surface the orchestrator needs.
type Sender interface {
	Send(ctx context.Context, history []domain.Message) (string, error)
	SendWithFallback(ctx context.Context, history []domain.Message, fallback string) (string, error)
}

// ToolRunner executes one invocation and returns its text result.
type ToolRunner interface {
	Execute(ctx context.Context, inv domain.ToolInvocation) (string, error)
}

// CatalogSource lists the remote tools available to this turn.
type CatalogSource interface {
	Refresh(ctx context.Context) ([]domain.ToolDefinition, error)
}

// Extractor pulls structured tool calls out of model text.
type Extractor interface {
	Extract(text string) []domain.ToolInvocation
}

var (
	_ Sender        = (*llm.Gateway)(nil)
	_ ToolRunner    = (*tools.Executor)(nil)
	_ CatalogSource = (*tools.Catalog)(nil)
	_ Extractor     = (*extract.Extractor)(nil)
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxAttempts overrides the correction budget. Non-positive values are ignored.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithStateObserver registers a callback invoked on every correction-loop
// state transition. Used by tests and diagnostics.
func WithStateObserver(fn func(State)) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// Orchestrator owns the control flow of a single user turn. It holds no
// per-turn state, so one instance serves concurrent turns.
type Orchestrator struct {
	sender      Sender
	runner      ToolRunner
	catalog     CatalogSource
	extractor   Extractor
	library     *prompt.Library
	maxAttempts int
	logger      *slog.Logger
	observer    func(State)
}

// NewOrchestrator builds an Orchestrator. Panics if any collaborator is nil.
func NewOrchestrator(sender Sender, runner ToolRunner, catalog CatalogSource, extractor Extractor, library *prompt.Library, opts ...Option) *Orchestrator {
	if sender == nil {
		panic("convo: sender must not be nil")
	}
	if runner == nil {
		panic("convo: runner must not be nil")
	}
	if catalog == nil {
		panic("convo: catalog must not be nil")
	}
	if extractor == nil {
		panic("convo: extractor must not be nil")
	}
	if library == nil {
		panic("convo: library must not be nil")
	}
	o := &Orchestrator{
		sender:      sender,
		runner:      runner,
		catalog:     catalog,
		extractor:   extractor,
		library:     library,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

func (o *Orchestrator) setState(s State, attempt int) {
	if o.observer != nil {
		o.observer(s)
	}
	o.log().Debug("correction state changed", "state", string(s), "attempt", attempt)
}

// HandleUserTurn answers one user message given the chat's prior history.
// The catalog is fetched once and reused by any correction prompts in the
// same turn. Every failure comes back as a *TurnError; no internal error
// shape escapes this boundary.
func (o *Orchestrator) HandleUserTurn(ctx context.Context, userText string, history []domain.Message) (string, error) {
	catalogText := catalogUnavailableText
	toolsAvailable := false
	if defs, err := o.catalog.Refresh(ctx); err != nil {
		o.log().Warn("tool catalog unavailable, answering without tools", "error", err)
	} else {
		catalogText = tools.RenderText(defs)
		toolsAvailable = true
	}

	augmented := prompt.BuildAugmented(o.library.Lookup(prompt.BlockAugment), catalogText, userText)
	reply, err := o.sender.Send(ctx, withUserTurn(history, augmented))
	if err != nil {
		return "", classifyTurnError(fmt.Errorf("augmented send: %w", err))
	}

	// Catalog failure forces the direct-answer path: no extraction, no execution.
	if !toolsAvailable {
		return reply, nil
	}

	invocations := o.extractor.Extract(reply)
	if len(invocations) == 0 {
		return reply, nil
	}

	answer, err := o.runWithRecovery(ctx, invocations, userText, history, catalogText, 0)
	if err != nil {
		return "", classifyTurnError(err)
	}
	return answer, nil
}

// runWithRecovery executes invocations in order. Full success asks the model
// for a natural-language answer over the tool results, degrading to a canned
// answer when that call fails. The first execution failure hands off to the
// correction cycle.
func (o *Orchestrator) runWithRecovery(ctx context.Context, invocations []domain.ToolInvocation, userText string, history []domain.Message, catalogText string, attempt int) (string, error) {
	o.setState(StateExecuting, attempt)

	results := make([]string, 0, len(invocations))
	for _, inv := range invocations {
		text, err := o.runner.Execute(ctx, inv)
		if err != nil {
			return o.correct(ctx, inv, err, userText, history, catalogText, attempt)
		}
		results = append(results, fmt.Sprintf("Tool %s: %s", inv.ToolName, text))
	}

	toolContext := strings.Join(results, "\n")
	answerPrompt := prompt.BuildAnswer(o.library.Lookup(prompt.BlockAnswer), userText, toolContext)
	degraded := prompt.DegradedAnswer(o.library.Lookup(prompt.BlockDegraded), toolContext)
	answer, err := o.sender.SendWithFallback(ctx, withUserTurn(history, answerPrompt), degraded)
	if err != nil {
		o.setState(StateFailed, attempt)
		return "", fmt.Errorf("final answer: %w", err)
	}
	o.setState(StateSucceeded, attempt)
	return answer, nil
}

// correct asks the model to repair a failed invocation and re-enters
// execution with whatever it proposes. Errors from the correction call
// itself propagate; only the final-answer call degrades.
func (o *Orchestrator) correct(ctx context.Context, inv domain.ToolInvocation, cause error, userText string, history []domain.Message, catalogText string, attempt int) (string, error) {
	if attempt >= o.maxAttempts {
		o.setState(StateFailed, attempt)
		return "", fmt.Errorf("%w: tool %s: %v", ErrMaxRetries, inv.ToolName, cause)
	}

	o.setState(StateCorrecting, attempt)
	o.log().Warn("tool execution failed, requesting correction",
		"tool", inv.ToolName, "attempt", attempt, "error", cause)

	correctionPrompt := prompt.BuildCorrection(o.library.Lookup(prompt.BlockCorrection), catalogText, userText, inv, cause.Error())
	response, err := o.sender.Send(ctx, withUserTurn(history, correctionPrompt))
	if err != nil {
		o.setState(StateFailed, attempt)
		return "", fmt.Errorf("correction request: %w", err)
	}

	if strings.Contains(response, correctionSentinel) {
		o.setState(StateFailed, attempt)
		return "", fmt.Errorf("%w: tool %s: %v", ErrCorrectionDeclined, inv.ToolName, cause)
	}

	corrected := o.extractor.Extract(response)
	if len(corrected) == 0 {
		o.setState(StateFailed, attempt)
		return "", fmt.Errorf("%w: tool %s", ErrCorrectionMissing, inv.ToolName)
	}

	return o.runWithRecovery(ctx, corrected, userText, history, catalogText, attempt+1)
}

// withUserTurn appends text as a transient user message; the result is what
// crosses the wire, never what is persisted.
func withUserTurn(history []domain.Message, text string) []domain.Message {
	out := make([]domain.Message, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, domain.Message{Role: domain.RoleUser, Content: text})
	return out
}
