package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"parley/internal/domain"
)

// LangChainProvider adapts a langchaingo chat model to domain.LLMProvider.
// It backs the "openai" and "ollama" provider choices.
type LangChainProvider struct {
	model llms.Model
	name  string // used in error messages
}

// NewOpenAIProvider returns an OpenAI-backed LLMProvider.
// baseURL may be empty to use the public API endpoint.
func NewOpenAIProvider(apiKey, model, baseURL string) (*LangChainProvider, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return &LangChainProvider{model: m, name: "openai"}, nil
}

// NewOllamaProvider returns an Ollama-backed LLMProvider.
// serverURL may be empty to use the local default (http://localhost:11434).
func NewOllamaProvider(model, serverURL string) (*LangChainProvider, error) {
	opts := []ollama.Option{
		ollama.WithModel(model),
	}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return &LangChainProvider{model: m, name: "ollama"}, nil
}

// chatMessageType maps a domain role onto the langchaingo message type.
func chatMessageType(role domain.MessageRole) schema.ChatMessageType {
	switch role {
	case domain.RoleAssistant:
		return schema.ChatMessageTypeAI
	case domain.RoleSystem:
		return schema.ChatMessageTypeSystem
	default:
		return schema.ChatMessageTypeHuman
	}
}

// Generate implements domain.LLMProvider.
func (p *LangChainProvider) Generate(ctx context.Context, history []domain.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", fmt.Errorf("%s: no messages in history", p.name)
	}
	messages := make([]llms.MessageContent, 0, len(history))
	for _, msg := range history {
		messages = append(messages, llms.TextParts(chatMessageType(msg.Role), msg.Content))
	}
	resp, err := p.model.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", p.name)
	}
	return resp.Choices[0].Content, nil
}

var _ domain.LLMProvider = (*LangChainProvider)(nil)
