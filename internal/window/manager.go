package window

import (
	"fmt"

	"parley/internal/domain"
)

// Manager implements domain.ContextManager using a sliding-window strategy.
// It counts tokens for each message and drops the oldest messages first
// when the total exceeds the configured maximum token budget.
type Manager struct {
	tokenizer domain.Tokenizer
	maxTokens int
}

// NewManager creates a Manager with the given tokenizer and max token limit.
// Panics if tokenizer is nil or maxTokens <= 0.
func NewManager(tokenizer domain.Tokenizer, maxTokens int) *Manager {
	if tokenizer == nil {
		panic("window: tokenizer must not be nil")
	}
	if maxTokens <= 0 {
		panic("window: maxTokens must be > 0")
	}
	return &Manager{
		tokenizer: tokenizer,
		maxTokens: maxTokens,
	}
}

// FitToWindow applies a sliding-window strategy: it reserves tokens for the
// given prompt, then walks messages from newest to oldest, keeping as many
// recent messages as fit within the remaining budget.
//
// Tokenizer failures degrade to a rune-based estimate instead of aborting.
// The only error condition is a reserved prompt that alone exceeds maxTokens.
func (m *Manager) FitToWindow(messages []domain.Message, reservePrompt string) ([]domain.Message, error) {
	if len(messages) == 0 {
		return []domain.Message{}, nil
	}

	reserved := m.countTokens(reservePrompt)
	if reserved > m.maxTokens {
		return nil, fmt.Errorf("window: reserved prompt (%d tokens) exceeds limit (%d tokens)", reserved, m.maxTokens)
	}

	budget := m.maxTokens - reserved

	tokenCounts := make([]int, len(messages))
	for i, msg := range messages {
		tokenCounts[i] = m.countTokens(msg.Content)
	}

	// Walk from the end (most recent) backwards, accumulating messages that fit.
	total := 0
	startIdx := len(messages) // will be decremented
	for i := len(messages) - 1; i >= 0; i-- {
		if total+tokenCounts[i] > budget {
			break
		}
		total += tokenCounts[i]
		startIdx = i
	}

	// Return the kept slice (preserves original order).
	return messages[startIdx:], nil
}

// countTokens counts tokens for text, falling back to the rune estimate when
// the tokenizer fails mid-conversation.
func (m *Manager) countTokens(text string) int {
	if text == "" {
		return 0
	}
	count, err := m.tokenizer.CountTokens(text)
	if err != nil {
		return estimateTokens(text)
	}
	return count
}

// Ensure Manager implements domain.ContextManager.
var _ domain.ContextManager = (*Manager)(nil)
