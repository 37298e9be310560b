package domain

import (
	"context"
	"time"
)

// LLMProvider is the single call shape the system needs from a text
// generation backend: a role-tagged history in, generated text out.
// Implementations map roles onto their own wire format and decide what to
// do with system entries. May be Gemini, OpenAI, Ollama, or mocks.
type LLMProvider interface {
	Generate(ctx context.Context, history []Message) (string, error)
}

// Store persists chats and their messages. Appends are durable before the
// call returns: a message appended is visible to the next read in the same
// turn.
type Store interface {
	// CreateChat inserts a new chat with the given title and returns it.
	CreateChat(ctx context.Context, title string) (*Chat, error)

	// GetChat returns the chat with its messages in chronological order,
	// or (nil, nil) when no such chat exists.
	GetChat(ctx context.Context, chatID string) (*Chat, error)

	// ListChats returns chat summaries (no messages), most recently
	// updated first.
	ListChats(ctx context.Context) ([]Chat, error)

	// DeleteChat removes the chat and, by cascade, its messages.
	DeleteChat(ctx context.Context, chatID string) error

	// RenameChat replaces the chat's title. Renames do not bump updatedAt;
	// only appended messages do.
	RenameChat(ctx context.Context, chatID, title string) error

	// AppendMessage durably appends one message and bumps the chat's
	// updatedAt in the same transaction.
	AppendMessage(ctx context.Context, chatID string, role MessageRole, content string) (*Message, error)

	// History returns the chat's messages in chronological order.
	History(ctx context.Context, chatID string) ([]Message, error)

	// DeleteStale removes chats not updated since the cutoff and returns
	// how many were removed.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Tokenizer counts tokens in a string for LLM context window management.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)
}

// ContextManager fits messages into a model's context window.
type ContextManager interface {
	// FitToWindow returns the newest suffix of messages that fits within
	// the configured token limit after reserving room for the prompt.
	// Older messages are dropped first (sliding window).
	FitToWindow(messages []Message, reservePrompt string) ([]Message, error)
}
