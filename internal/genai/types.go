// Package genai is the AI chat backend: an OpenAI-compatible primary model,
// an optional Gemini fallback and a bounded per-user conversation memory.
//
// Fallback strategy:
// 1. Model retry: the same model is retried with full-jitter backoff on transient errors
// 2. Provider fallback: the next configured provider is tried on quota or persistent failure
package genai

import (
	"context"
	"time"
)

// Provider identifies an LLM backend.
type Provider string

const (
	// ProviderOpenAI is any OpenAI-compatible chat completions endpoint.
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is Google's Gemini API.
	ProviderGemini Provider = "gemini"
)

// String returns the string representation of the provider.
func (p Provider) String() string {
	return string(p)
}

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatModel completes a conversation with one model.
type ChatModel interface {
	// Complete returns the assistant reply to messages.
	Complete(ctx context.Context, messages []Message) (string, error)
	// Provider returns the provider type for metrics.
	Provider() Provider
	// Close releases any resources held by the model.
	Close() error
}

// RetryConfig defines retry behavior for LLM API calls.
// Uses AWS-recommended Full Jitter exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialDelay is the base delay before first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration
}

// Retry configuration defaults
const (
	DefaultMaxRetryAttempts  = 2
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second
)

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxRetryAttempts,
		InitialDelay: DefaultInitialRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
	}
}

// Config holds configuration for all LLM providers.
type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAITemp    float64 // sampling temperature, 0 for deterministic replies

	GeminiAPIKey string
	GeminiModel  string

	// HistoryTurns is the number of user/assistant pairs remembered per user.
	HistoryTurns int

	// SystemPrompt overrides the default system prompt when non-empty.
	SystemPrompt string

	Retry RetryConfig
}

// HasAnyProvider returns true if at least one provider is configured.
func (c Config) HasAnyProvider() bool {
	return c.OpenAIAPIKey != "" || c.GeminiAPIKey != ""
}
