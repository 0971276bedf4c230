package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiarash-bot/kiarash/internal/metrics"
)

// Default models.
const (
	DefaultOpenAIModel = "gpt-5.2"
	DefaultGeminiModel = "gemini-2.5-flash"
)

// CreateAssistant builds an Assistant from cfg.
//
// Provider selection logic:
//  1. The OpenAI-compatible endpoint is primary when its key is set.
//  2. Gemini is the fallback, or the primary when it is the only one configured.
//  3. Returns nil when no provider is configured (AI disabled).
func CreateAssistant(ctx context.Context, cfg Config, m *metrics.Metrics) (*Assistant, error) {
	if !cfg.HasAnyProvider() {
		slog.InfoContext(ctx, "no AI provider configured, AI chat disabled")
		return nil, nil //nolint:nilnil // Intentional: feature disabled
	}

	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = DefaultOpenAIModel
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = DefaultGeminiModel
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	var models []ChatModel
	if c := newOpenAIChat(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAITemp); c != nil {
		models = append(models, c)
	}
	g, err := newGeminiChat(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.OpenAITemp)
	if err != nil {
		if len(models) == 0 {
			return nil, fmt.Errorf("create gemini chat: %w", err)
		}
		slog.WarnContext(ctx, "failed to create gemini chat, continuing without fallback", "error", err)
	} else if g != nil {
		models = append(models, g)
	}

	var fallback ChatModel
	if len(models) > 1 {
		fallback = models[1]
	}

	slog.InfoContext(ctx, "AI chat enabled",
		"primary", models[0].Provider(),
		"fallback_enabled", fallback != nil,
		"history_turns", cfg.HistoryTurns)

	return NewAssistant(models[0], fallback, NewMemory(cfg.HistoryTurns), cfg.SystemPrompt, cfg.Retry, m), nil
}
