package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiChat talks to the Gemini API. It implements the ChatModel interface.
type geminiChat struct {
	client      *genai.Client
	model       string
	temperature float32
}

// newGeminiChat creates a Gemini chat model.
// Returns nil if apiKey is empty (provider disabled).
func newGeminiChat(ctx context.Context, apiKey, model string, temperature float64) (*geminiChat, error) {
	if apiKey == "" {
		return nil, nil //nolint:nilnil // Intentional: provider disabled when no API key
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &geminiChat{
		client:      client,
		model:       model,
		temperature: float32(temperature),
	}, nil
}

// Complete sends the conversation and returns the concatenated text parts.
func (c *geminiChat) Complete(ctx context.Context, messages []Message) (string, error) {
	system, contents := toGeminiContents(messages)

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(c.temperature),
		SystemInstruction: system,
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	duration := time.Since(start)

	if err != nil {
		slog.WarnContext(ctx, "generate content failed",
			"provider", ProviderGemini,
			"model", c.model,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return "", WrapError(fmt.Errorf("generate content failed: %w", err), ProviderGemini)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", WrapError(errors.New("empty response: no candidates"), ProviderGemini)
	}

	var reply strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			reply.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(reply.String())
	if text == "" {
		return "", WrapError(errors.New("empty response: no text"), ProviderGemini)
	}

	if resp.UsageMetadata != nil {
		slog.DebugContext(ctx, "generate content completed",
			"provider", ProviderGemini,
			"model", c.model,
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount,
			"duration_ms", duration.Milliseconds())
	}

	return text, nil
}

// toGeminiContents splits system messages into the system instruction and maps
// the remaining turns onto Gemini's user/model roles.
func toGeminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser), contents
}

// Provider returns the provider type for this model.
func (c *geminiChat) Provider() Provider {
	return ProviderGemini
}

// Close releases resources.
func (c *geminiChat) Close() error {
	// genai.Client does not require explicit cleanup in current SDK version
	return nil
}
