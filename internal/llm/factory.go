package llm

import (
	"fmt"
	"strings"
	"time"

	"parley/internal/domain"
	"parley/internal/retry"
)

// defaultCooldownDuration is the time a rate-limited key stays in cooldown.
const defaultCooldownDuration = 60 * time.Second

// NewProvider returns an LLMProvider for the given LLM config, wrapped with
// exponential-backoff retry on transient errors when retryCfg is non-nil.
// Provider may be "gemini", "openai", "ollama", or "local". Empty provider
// defaults to "gemini".
func NewProvider(cfg domain.LLMConfig, retryCfg *domain.RetryConfig) (domain.LLMProvider, error) {
	base, err := newBaseProvider(cfg)
	if err != nil {
		return nil, err
	}
	return wrapWithRetry(base, retryCfg), nil
}

// newBaseProvider creates the raw LLM provider without retry wrapping.
// When the API key contains comma-separated keys, a KeyPoolProvider is created
// with round-robin rotation and 429-cooldown support.
func newBaseProvider(cfg domain.LLMConfig) (domain.LLMProvider, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "gemini"
	}
	switch provider {
	case "local":
		return NewLocalProvider("Local: "), nil
	case "gemini":
		return resolveKeyedProvider("gemini", cfg, func(key string) domain.LLMProvider {
			p := NewGeminiProvider(key, cfg.Model)
			if cfg.BaseURL != "" {
				p.baseURL = cfg.BaseURL
			}
			if cfg.Timeout > 0 {
				p.client.Timeout = time.Duration(cfg.Timeout) * time.Millisecond
			}
			return p
		})
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider: API key not set (set llm.apiKey or PARLEY_LLM_API_KEY)")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "ollama":
		return NewOllamaProvider(cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (use: gemini, openai, ollama, local)", provider)
	}
}

// splitKeys splits a raw key value by commas, trims whitespace, and filters empty entries.
func splitKeys(raw string) []string {
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

// newKeyPoolFunc is the KeyPool constructor. Package-level var for test injection.
var newKeyPoolFunc = NewKeyPool

// resolveKeyedProvider splits the configured API key into one or more keys and
// returns either a single provider (one key) or a KeyPoolProvider (multiple keys).
// providerName is used in error messages. makeProvider creates a provider for a
// single API key.
func resolveKeyedProvider(providerName string, cfg domain.LLMConfig, makeProvider func(key string) domain.LLMProvider) (domain.LLMProvider, error) {
	keys := splitKeys(cfg.APIKey)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s provider: API key not set (set llm.apiKey or PARLEY_LLM_API_KEY)", providerName)
	}
	if len(keys) == 1 {
		return makeProvider(keys[0]), nil
	}
	pool, err := newKeyPoolFunc(keys, defaultCooldownDuration)
	if err != nil {
		return nil, fmt.Errorf("%s key pool: %w", providerName, err)
	}
	providers := make([]domain.LLMProvider, len(keys))
	for i, k := range keys {
		providers[i] = makeProvider(k)
	}
	return NewKeyPoolProvider(pool, providers)
}

// NewFallbackProviders creates LLM providers for each fallback config entry.
// Entries that fail to construct are silently skipped; fallbacks are best-effort.
func NewFallbackProviders(fallbacks []domain.FallbackConfig, retryCfg *domain.RetryConfig) []domain.LLMProvider {
	var providers []domain.LLMProvider
	for _, fb := range fallbacks {
		cfg := domain.LLMConfig{
			Provider: fb.Provider,
			Model:    fb.Model,
			APIKey:   fb.APIKey,
			BaseURL:  fb.BaseURL,
		}
		p, err := NewProvider(cfg, retryCfg)
		if err != nil {
			continue
		}
		providers = append(providers, p)
	}
	return providers
}

// wrapWithRetry decorates a provider with retry logic when config is supplied.
func wrapWithRetry(provider domain.LLMProvider, retryCfg *domain.RetryConfig) domain.LLMProvider {
	if retryCfg == nil || retryCfg.MaxAttempts <= 0 {
		return provider
	}
	policy := retry.Policy{
		MaxAttempts: retryCfg.MaxAttempts,
		BaseDelay:   time.Duration(retryCfg.BaseDelay) * time.Millisecond,
		MaxDelay:    time.Duration(retryCfg.MaxDelay) * time.Millisecond,
	}
	return retry.NewRetryableProvider(provider, policy)
}
