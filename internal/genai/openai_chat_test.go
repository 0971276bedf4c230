package genai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIChatComplete(t *testing.T) {
	t.Parallel()
	var seen map[string]any
	srv := newChatServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-test",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "  درود  "}}],
		"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
	}`, &seen)

	c := newOpenAIChat("sk-test", srv.URL+"/v1/", "gpt-test", 0.5)
	require.NotNil(t, c)

	reply, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "سلام"},
	})
	require.NoError(t, err)
	assert.Equal(t, "درود", reply)

	assert.Equal(t, "gpt-test", seen["model"])
	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestOpenAIChatErrorStatus(t *testing.T) {
	t.Parallel()
	srv := newChatServer(t, http.StatusUnauthorized,
		`{"error": {"message": "bad key", "type": "invalid_request_error"}}`, nil)

	c := newOpenAIChat("sk-test", srv.URL+"/v1/", "gpt-test", 0)
	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)

	var llmErr *LLMError
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, http.StatusUnauthorized, llmErr.StatusCode)
	assert.Equal(t, ProviderOpenAI, llmErr.Provider)
	assert.Equal(t, ActionFail, ClassifyError(err))
}

func TestOpenAIChatEmptyChoices(t *testing.T) {
	t.Parallel()
	srv := newChatServer(t, http.StatusOK,
		`{"id": "x", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`, nil)

	c := newOpenAIChat("sk-test", srv.URL+"/v1/", "m", 0)
	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestNewOpenAIChatDisabled(t *testing.T) {
	t.Parallel()
	assert.Nil(t, newOpenAIChat("", "", "m", 0))
}

func TestToGeminiContents(t *testing.T) {
	t.Parallel()
	system, contents := toGeminiContents([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
	})
	require.NotNil(t, system)
	require.Len(t, system.Parts, 1)
	assert.Equal(t, "sys", system.Parts[0].Text)

	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "a", contents[1].Parts[0].Text)

	system, contents = toGeminiContents([]Message{{Role: RoleUser, Content: "q"}})
	assert.Nil(t, system)
	assert.Len(t, contents, 1)
}

func TestNewGeminiChatDisabled(t *testing.T) {
	t.Parallel()
	c, err := newGeminiChat(context.Background(), "", "m", 0)
	require.NoError(t, err)
	assert.Nil(t, c)
}
