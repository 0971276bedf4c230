package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openaiChat talks to any OpenAI-compatible chat completions endpoint.
// It implements the ChatModel interface.
type openaiChat struct {
	client      openai.Client
	model       string
	temperature float64
}

// newOpenAIChat creates an OpenAI-compatible chat model.
// Returns nil if apiKey is empty (provider disabled).
func newOpenAIChat(apiKey, baseURL, model string, temperature float64) *openaiChat {
	if apiKey == "" {
		return nil
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are driven by WithRetry so they share one backoff policy.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &openaiChat{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
	}
}

// Complete sends the conversation and returns the first choice's content.
func (c *openaiChat) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(c.temperature),
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		slog.WarnContext(ctx, "chat completion failed",
			"provider", ProviderOpenAI,
			"model", c.model,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return "", WrapError(fmt.Errorf("chat completion failed: %w", err), ProviderOpenAI)
	}

	if len(resp.Choices) == 0 {
		return "", WrapError(errors.New("empty response: no choices"), ProviderOpenAI)
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", WrapError(errors.New("empty response: no content"), ProviderOpenAI)
	}

	slog.DebugContext(ctx, "chat completion completed",
		"provider", ProviderOpenAI,
		"model", c.model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration_ms", duration.Milliseconds())

	return reply, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// Provider returns the provider type for this model.
func (c *openaiChat) Provider() Provider {
	return ProviderOpenAI
}

// Close releases resources.
func (c *openaiChat) Close() error {
	// openai-go client doesn't require cleanup
	return nil
}
