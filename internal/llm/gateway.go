package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"parley/internal/domain"
)

// ErrInvalidHistory indicates the conversation history cannot be sent: it is
// either empty or its last message was not authored by the user.
var ErrInvalidHistory = errors.New("llm: invalid conversation history")

// GatewayOption is a functional option for configuring Gateway.
type GatewayOption func(*Gateway)

// WithFallbacks adds fallback LLM providers that are tried in order if the
// primary provider fails. Nil entries are silently skipped.
func WithFallbacks(providers ...domain.LLMProvider) GatewayOption {
	return func(g *Gateway) {
		for _, p := range providers {
			if p != nil {
				g.fallbacks = append(g.fallbacks, p)
			}
		}
	}
}

// WithContextManager sets the context manager for window fitting. If cm is nil
// it is ignored (all messages are sent without truncation).
func WithContextManager(cm domain.ContextManager) GatewayOption {
	return func(g *Gateway) {
		if cm != nil {
			g.contextMgr = cm
		}
	}
}

// WithLogger sets a structured logger for the Gateway. If l is nil it is
// ignored and the default slog logger is used.
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// Gateway is the single entry point for sending conversation history to a
// language model. It validates the history, fits it into the model's context
// window, and fails over to fallback providers when the primary one errors.
// Callers are unaware of the underlying implementation (Gemini, OpenAI, local).
type Gateway struct {
	provider   domain.LLMProvider
	fallbacks  []domain.LLMProvider  // optional; tried in order when provider fails
	contextMgr domain.ContextManager // optional; nil means no window management
	logger     *slog.Logger          // optional; nil uses slog.Default()
}

// NewGateway returns a Gateway that uses the given provider. Provider must not be nil.
func NewGateway(provider domain.LLMProvider, opts ...GatewayOption) *Gateway {
	if provider == nil {
		panic("llm: provider must not be nil")
	}
	g := &Gateway{provider: provider}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// log returns the Gateway's logger, falling back to the default slog logger.
func (g *Gateway) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}

// Send validates the history, applies window fitting, and returns the model's
// reply. The last message must be from the user; otherwise ErrInvalidHistory
// is returned before anything is transmitted.
func (g *Gateway) Send(ctx context.Context, history []domain.Message) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("%w: history is empty", ErrInvalidHistory)
	}
	last := history[len(history)-1]
	if last.Role != domain.RoleUser {
		return "", fmt.Errorf("%w: last message has role %q, want %q", ErrInvalidHistory, last.Role, domain.RoleUser)
	}

	fitted := history
	if g.contextMgr != nil {
		f, err := g.contextMgr.FitToWindow(history, "")
		if err != nil {
			return "", fmt.Errorf("gateway: window fitting failed: %w", err)
		}
		fitted = f
	}

	return g.sendWithFailover(ctx, fitted)
}

// SendWithFallback behaves like Send but returns the supplied fallback text in
// place of a final provider error. History validation failures still surface:
// a history the gateway refuses to transmit is a caller bug, not an outage.
func (g *Gateway) SendWithFallback(ctx context.Context, history []domain.Message, fallback string) (string, error) {
	result, err := g.Send(ctx, history)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, ErrInvalidHistory) {
		return "", err
	}
	g.log().Warn("send failed, returning fallback text", "error", err)
	return fallback, nil
}

// sendWithFailover tries the primary provider, then each fallback in order.
// Returns the first successful response, or an aggregated error if all fail.
func (g *Gateway) sendWithFailover(ctx context.Context, history []domain.Message) (string, error) {
	result, err := g.provider.Generate(ctx, history)
	if err == nil {
		return result, nil
	}

	// No fallbacks configured, return the primary error directly.
	if len(g.fallbacks) == 0 {
		return "", err
	}

	// Collect all errors for aggregated reporting.
	errs := []error{err}

	for i, fb := range g.fallbacks {
		// Stop iterating if the context has been canceled.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		g.log().Warn("provider failed, trying fallback",
			"provider_index", i,
			"error", err,
		)

		result, fbErr := fb.Generate(ctx, history)
		if fbErr == nil {
			return result, nil
		}
		errs = append(errs, fbErr)
		err = fbErr
	}

	return "", fmt.Errorf("gateway: all %d providers failed: %w", len(errs), errors.Join(errs...))
}
