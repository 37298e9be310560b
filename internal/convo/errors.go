package convo

import (
	"errors"
	"fmt"
	"time"

	"parley/internal/llm"
)

// Sentinel errors raised inside the self-correction loop.
var (
	// ErrCorrectionDeclined reports the model answering a correction prompt
	// with the ERROR_UNABLE_TO_FIX sentinel.
	ErrCorrectionDeclined = errors.New("convo: model declined to correct the tool call")

	// ErrCorrectionMissing reports a correction response carrying no
	// extractable tool call.
	ErrCorrectionMissing = errors.New("convo: correction response contained no tool call")

	// ErrMaxRetries reports a tool failure after the correction budget was spent.
	ErrMaxRetries = errors.New("convo: tool correction attempts exhausted")
)

// TurnKind classifies a failed turn for the transport layer.
type TurnKind string

const (
	KindLLMUnavailable     TurnKind = "llm_unavailable"
	KindCorrectionDeclined TurnKind = "correction_declined"
	KindCorrectionMissing  TurnKind = "correction_missing"
	KindRetriesExhausted   TurnKind = "retries_exhausted"
	KindHistoryInvalid     TurnKind = "history_invalid"
)

// defaultRetryAfter is the client back-off hint attached to failed turns.
const defaultRetryAfter = 30 * time.Second

// TurnError is the only error shape HandleUserTurn returns: every internal
// failure is converted into one at the orchestrator boundary, so raw internal
// errors never reach the transport layer.
type TurnError struct {
	Kind       TurnKind
	RetryAfter time.Duration
	cause      error
}

// NewTurnError builds a TurnError of the given kind wrapping cause.
func NewTurnError(kind TurnKind, retryAfter time.Duration, cause error) *TurnError {
	return &TurnError{Kind: kind, RetryAfter: retryAfter, cause: cause}
}

func (e *TurnError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("turn failed (%s)", e.Kind)
	}
	return fmt.Sprintf("turn failed (%s): %v", e.Kind, e.cause)
}

func (e *TurnError) Unwrap() error { return e.cause }

// UserMessage returns a stable, user-safe description of the failure.
// Internal error details never appear here.
func (e *TurnError) UserMessage() string {
	if e.Kind == KindHistoryInvalid {
		return "This conversation is in an unexpected state. Start a new chat and try again."
	}
	return fmt.Sprintf("The assistant is temporarily unavailable. Please retry in %d seconds.", int(e.RetryAfter.Seconds()))
}

// classifyTurnError wraps err in a TurnError with the matching kind.
func classifyTurnError(err error) *TurnError {
	kind := KindLLMUnavailable
	switch {
	case errors.Is(err, llm.ErrInvalidHistory):
		kind = KindHistoryInvalid
	case errors.Is(err, ErrCorrectionDeclined):
		kind = KindCorrectionDeclined
	case errors.Is(err, ErrCorrectionMissing):
		kind = KindCorrectionMissing
	case errors.Is(err, ErrMaxRetries):
		kind = KindRetriesExhausted
	}
	return NewTurnError(kind, defaultRetryAfter, err)
}
