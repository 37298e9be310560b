package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Core Configuration
// =============================================================================

type Config struct {
	LLM        LLMConfig        `json:"llm"`
	MCP        MCPConfig        `json:"mcp"`
	Retry      RetryConfig      `json:"retry"`
	Correction CorrectionConfig `json:"correction"`
	Gateway    GatewayConfig    `json:"gateway"`
	Store      StoreConfig      `json:"store"`
	Retention  RetentionConfig  `json:"retention"`
	Prompts    PromptConfig     `json:"prompts"`
	Window     WindowConfig     `json:"window"`
	Log        LogConfig        `json:"log"`
}

type LLMConfig struct {
	Provider  string           `json:"provider"` // "gemini" | "openai" | "ollama"
	Model     string           `json:"model"`
	APIKey    string           `json:"apiKey,omitempty"`
	BaseURL   string           `json:"baseUrl,omitempty"`
	Timeout   int              `json:"timeout"`             // Request timeout in milliseconds
	Fallbacks []FallbackConfig `json:"fallbacks,omitempty"` // optional failover providers
}

// FallbackConfig describes an alternative LLM provider for failover.
type FallbackConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"apiKey,omitempty"`
	BaseURL  string `json:"baseUrl,omitempty"`
}

type MCPConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"baseUrl"`
	Timeout int    `json:"timeout"` // Request timeout in milliseconds
}

// RetryConfig controls retry behaviour for LLM calls.
type RetryConfig struct {
	MaxAttempts int `json:"maxAttempts"` // Maximum retry attempts (0 = no retries)
	BaseDelay   int `json:"baseDelay"`   // Base backoff in milliseconds
	MaxDelay    int `json:"maxDelay"`    // Backoff cap in milliseconds
}

// CorrectionConfig bounds the tool self-correction cycle.
type CorrectionConfig struct {
	MaxAttempts int `json:"maxAttempts"` // Correction cycles per turn before giving up
}

type GatewayConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	AuthToken      string   `json:"authToken,omitempty"` // When set, gateway requires Authorization: Bearer <authToken>
	AllowedOrigins []string `json:"allowedOrigins"`
}

type StoreConfig struct {
	DatabaseURL string `json:"databaseUrl"` // file path or libsql:// URL
}

type RetentionConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"` // cron expression
	MaxAge   int    `json:"maxAge"`  // Chat age in days before sweep
}

type PromptConfig struct {
	Dir string `json:"dir,omitempty"` // instruction override directory; empty = built-ins only
}

type WindowConfig struct {
	MaxTokens int    `json:"maxTokens"`
	Encoding  string `json:"encoding"` // tiktoken encoding name
}

type LogConfig struct {
	Level string `json:"level"` // "debug" | "info" | "warn" | "error"
	File  string `json:"file,omitempty"`
}

// =============================================================================
// Conversation Domain
// =============================================================================

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is one entry in a chat transcript. Immutable once created;
// creation order defines the conversation history.
type Message struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chatId"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}

// NewMessage builds an unsaved message with a fresh ID and UTC timestamp.
func NewMessage(chatID string, role MessageRole, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages,omitempty"`
}

// TitleFromContent derives a chat title from the first user message.
func TitleFromContent(content string) string {
	const maxTitle = 60
	t := strings.TrimSpace(content)
	if t == "" {
		return "New chat"
	}
	if line, _, found := strings.Cut(t, "\n"); found {
		t = strings.TrimSpace(line)
	}
	if runes := []rune(t); len(runes) > maxTitle {
		t = strings.TrimSpace(string(runes[:maxTitle])) + "…"
	}
	return t
}

// =============================================================================
// Tooling
// =============================================================================

// ToolInvocation is a structured tool call extracted from LLM output text.
// Transient: constructed per turn, never persisted.
type ToolInvocation struct {
	ToolName  string          `json:"toolName"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult pairs a tool name with the text its execution produced.
// Consumed immediately to build the next prompt, then discarded.
type ToolResult struct {
	ToolName string `json:"toolName"`
	Text     string `json:"text"`
}

// ToolDefinition describes one remote tool as advertised by tools/list.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}
