package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/kiarash-bot/kiarash/internal/errors"
	"github.com/kiarash-bot/kiarash/internal/metrics"
)

// Assistant answers free-text chat per user. It wraps a primary and an optional
// fallback ChatModel:
// 1. Model retry with backoff (same provider)
// 2. Provider fallback (primary → fallback provider)
// A reply is remembered only when the exchange succeeds.
type Assistant struct {
	primary      ChatModel
	fallback     ChatModel
	memory       *Memory
	systemPrompt string
	retryConfig  RetryConfig
	metrics      *metrics.Metrics
}

// NewAssistant creates an Assistant. fallback and m may be nil.
func NewAssistant(primary, fallback ChatModel, memory *Memory, systemPrompt string, cfg RetryConfig, m *metrics.Metrics) *Assistant {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if memory == nil {
		memory = NewMemory(0)
	}
	return &Assistant{
		primary:      primary,
		fallback:     fallback,
		memory:       memory,
		systemPrompt: systemPrompt,
		retryConfig:  cfg,
		metrics:      m,
	}
}

// Chat sends text from userID together with the remembered conversation and
// returns the reply. Failures wrap errors.ErrUpstream (or ErrTimeout).
func (a *Assistant) Chat(ctx context.Context, userID int64, text string) (string, error) {
	if a == nil || a.primary == nil {
		return "", fmt.Errorf("%w: ai provider not configured", apperrors.ErrUpstream)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty message", apperrors.ErrNotParseable)
	}

	messages := make([]Message, 0, 2*max(a.memory.turns, 0)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: a.systemPrompt})
	messages = append(messages, a.memory.History(userID)...)
	messages = append(messages, Message{Role: RoleUser, Content: text})

	start := time.Now()
	provider := a.primary.Provider()

	reply, err := a.completeWithRetry(ctx, a.primary, messages)
	if err == nil {
		a.recordRequest(provider, "success", start)
		a.memory.Append(userID, text, reply)
		return reply, nil
	}

	action := ClassifyError(err)
	slog.WarnContext(ctx, "primary chat model failed",
		"provider", provider,
		"error", err,
		"action", action,
		"duration", time.Since(start))

	if action == ActionFail || a.fallback == nil || ctx.Err() != nil {
		a.recordRequest(provider, statusOf(err), start)
		return "", upstream(err)
	}
	a.recordRequest(provider, statusOf(err), start)

	fallbackProvider := a.fallback.Provider()
	slog.InfoContext(ctx, "falling back to secondary provider",
		"from", provider,
		"to", fallbackProvider)

	fallbackStart := time.Now()
	reply, err = a.completeWithRetry(ctx, a.fallback, messages)
	if err != nil {
		a.recordRequest(fallbackProvider, statusOf(err), fallbackStart)
		slog.ErrorContext(ctx, "all chat models failed",
			"primary", provider,
			"fallback", fallbackProvider,
			"error", err)
		return "", upstream(fmt.Errorf("all providers failed: %w", err))
	}

	a.recordRequest(fallbackProvider, "success", fallbackStart)
	if a.metrics != nil {
		a.metrics.RecordAIFallback(provider.String(), fallbackProvider.String())
	}
	a.memory.Append(userID, text, reply)
	return reply, nil
}

// Reset forgets userID's conversation.
func (a *Assistant) Reset(userID int64) {
	a.memory.Reset(userID)
}

// Close releases both models.
func (a *Assistant) Close() error {
	var errs []error
	for _, m := range []ChatModel{a.primary, a.fallback} {
		if m != nil {
			errs = append(errs, m.Close())
		}
	}
	return errors.Join(errs...)
}

func (a *Assistant) completeWithRetry(ctx context.Context, model ChatModel, messages []Message) (string, error) {
	var reply string
	onRetry := func(attempt int, err error) {
		slog.DebugContext(ctx, "retrying chat completion",
			"provider", model.Provider(),
			"attempt", attempt,
			"error", err)
	}
	err := WithRetry(ctx, a.retryConfig, onRetry, func() error {
		var err error
		reply, err = model.Complete(ctx, messages)
		return err
	})
	return reply, err
}

func (a *Assistant) recordRequest(provider Provider, status string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordProviderRequest("ai_"+provider.String(), status, time.Since(start).Seconds())
	}
}

func statusOf(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}

// upstream maps a model failure onto the shared sentinels.
func upstream(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.NewUpstreamError("ai", 0, err)
}
