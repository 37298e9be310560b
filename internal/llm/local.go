package llm

import (
	"context"
	"fmt"

	"parley/internal/domain"
)

// LocalProvider is a model-agnostic stub that returns a deterministic response
// for manual testing without API keys. It implements domain.LLMProvider.
type LocalProvider struct {
	Prefix string // prepended to the echoed message in the response
}

// NewLocalProvider returns a local provider that echoes the last message with
// an optional prefix.
func NewLocalProvider(prefix string) *LocalProvider {
	return &LocalProvider{Prefix: prefix}
}

// Generate implements domain.LLMProvider.
func (p *LocalProvider) Generate(ctx context.Context, history []domain.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", fmt.Errorf("local: no messages in history")
	}
	last := history[len(history)-1].Content
	if p.Prefix == "" {
		return last, nil
	}
	return fmt.Sprintf("%s%s", p.Prefix, last), nil
}

// Ensure LocalProvider implements domain.LLMProvider at compile time.
var _ domain.LLMProvider = (*LocalProvider)(nil)
