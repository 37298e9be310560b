package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"parley/internal/domain"
)

// marshalIndent and writeFile are used by WriteDefault and Save; tests may replace to force errors.
var (
	marshalIndent = json.MarshalIndent
	writeFile     = os.WriteFile
)

// Environment variables recognised by LoadWithEnv.
const (
	EnvConfigPath   = "PARLEY_CONFIG"
	EnvLLMAPIKey    = "PARLEY_LLM_API_KEY"
	EnvMCPURL       = "PARLEY_MCP_URL"
	EnvGatewayToken = "PARLEY_GATEWAY_TOKEN"
	EnvDatabaseURL  = "PARLEY_DB_URL"
)

// Default returns the configuration used when no file exists yet.
func Default() *domain.Config {
	return &domain.Config{
		LLM: domain.LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  30000,
		},
		MCP: domain.MCPConfig{
			Enabled: true,
			BaseURL: "http://localhost:8081",
			Timeout: 10000,
		},
		Retry: domain.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   500,
			MaxDelay:    30000,
		},
		Correction: domain.CorrectionConfig{MaxAttempts: 2},
		Gateway: domain.GatewayConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			AllowedOrigins: []string{},
		},
		Store: domain.StoreConfig{DatabaseURL: "parley.db"},
		Retention: domain.RetentionConfig{
			Enabled:  false,
			Schedule: "0 3 * * *",
			MaxAge:   90,
		},
		Window: domain.WindowConfig{MaxTokens: 8192, Encoding: "cl100k_base"},
		Log:    domain.LogConfig{Level: "info"},
	}
}

// DefaultPath returns ~/.config/parley/config.json, or a relative fallback
// when the home directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".config", "parley", "config.json")
}

// ResolvePath returns the config file path, honouring PARLEY_CONFIG.
func ResolvePath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath()
}

// WriteDefault writes the default Config to path. Parent directories are not created.
func WriteDefault(path string) error {
	data, err := marshalIndent(Default(), "", "  ")
	if err != nil {
		return fmt.Errorf("config default marshal: %w", err)
	}
	return writeFile(path, data, 0644)
}

// Load reads path, unmarshals into domain.Config, and cleans all local path
// fields to mitigate path traversal. Returns error if file is missing or invalid JSON.
func Load(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	var c domain.Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	CleanPaths(&c)
	return &c, nil
}

// LoadWithEnv runs the full startup loading order: .env file (best effort),
// then the JSON config file (PARLEY_CONFIG or the default location, falling
// back to built-in defaults when the default file does not exist), then
// environment overrides, then validation. A missing file named explicitly by
// PARLEY_CONFIG is an error; a missing file at the default location is not.
func LoadWithEnv() (*domain.Config, error) {
	_ = godotenv.Load()

	explicit := os.Getenv(EnvConfigPath)
	path := ResolvePath()

	cfg, err := Load(path)
	if err != nil {
		if explicit != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = Default()
	}

	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides copies recognised PARLEY_* variables over file-loaded values.
// Empty variables are ignored so the file remains authoritative.
func ApplyEnvOverrides(cfg *domain.Config) {
	if cfg == nil {
		return
	}
	if v := os.Getenv(EnvLLMAPIKey); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv(EnvMCPURL); v != "" {
		cfg.MCP.BaseURL = v
	}
	if v := os.Getenv(EnvGatewayToken); v != "" {
		cfg.Gateway.AuthToken = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		cfg.Store.DatabaseURL = v
	}
}

// CleanPaths applies filepath.Clean to local filesystem fields. URL-shaped
// values (anything carrying a scheme) are left alone.
func CleanPaths(cfg *domain.Config) {
	if cfg == nil {
		return
	}
	if cfg.Prompts.Dir != "" {
		cfg.Prompts.Dir = filepath.Clean(cfg.Prompts.Dir)
	}
	if cfg.Log.File != "" {
		cfg.Log.File = filepath.Clean(cfg.Log.File)
	}
	if cfg.Store.DatabaseURL != "" && !strings.Contains(cfg.Store.DatabaseURL, "://") {
		cfg.Store.DatabaseURL = filepath.Clean(cfg.Store.DatabaseURL)
	}
}

// Save writes cfg to path as JSON, creating parent directories as needed.
func Save(path string, cfg *domain.Config) error {
	if cfg == nil {
		return fmt.Errorf("config save: nil config")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config save mkdir: %w", err)
	}
	data, err := marshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config save marshal: %w", err)
	}
	if err := writeFile(path, data, 0644); err != nil {
		return fmt.Errorf("config save write: %w", err)
	}
	return nil
}

// Validate checks that cfg is consistent enough to start the daemon.
func Validate(cfg *domain.Config) error {
	if cfg == nil {
		return fmt.Errorf("config validate: nil config")
	}
	if cfg.Gateway.Port < 1 || cfg.Gateway.Port > 65535 {
		return fmt.Errorf("config validate: gateway.port must be between 1 and 65535, got %d", cfg.Gateway.Port)
	}
	if cfg.Store.DatabaseURL == "" {
		return fmt.Errorf("config validate: store.databaseUrl must not be empty")
	}
	if cfg.MCP.Enabled && cfg.MCP.BaseURL == "" {
		return fmt.Errorf("config validate: mcp.baseUrl must not be empty when mcp is enabled")
	}
	if cfg.Window.MaxTokens <= 0 {
		return fmt.Errorf("config validate: window.maxTokens must be positive, got %d", cfg.Window.MaxTokens)
	}
	if cfg.Correction.MaxAttempts < 1 {
		return fmt.Errorf("config validate: correction.maxAttempts must be at least 1, got %d", cfg.Correction.MaxAttempts)
	}
	if cfg.Retry.MaxAttempts < 0 {
		return fmt.Errorf("config validate: retry.maxAttempts must not be negative, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retention.Enabled && cfg.Retention.Schedule == "" {
		return fmt.Errorf("config validate: retention.schedule must not be empty when retention is enabled")
	}
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config validate: log.level must be one of debug, info, warn, error; got %q", cfg.Log.Level)
	}
	return nil
}
