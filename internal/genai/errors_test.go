package genai

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want ErrorAction
	}{
		{"nil", nil, ActionFail},
		{"canceled", context.Canceled, ActionFail},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ActionRetry},
		{"quota over 429", &LLMError{Err: errors.New("insufficient_quota"), StatusCode: 429}, ActionFallback},
		{"payment required", &LLMError{Err: errors.New("pay up"), StatusCode: 402}, ActionFallback},
		{"status 429", &LLMError{Err: errors.New("slow down"), StatusCode: 429}, ActionRetry},
		{"status 503", &LLMError{Err: errors.New("down"), StatusCode: 503}, ActionRetry},
		{"status 401", &LLMError{Err: errors.New("who"), StatusCode: 401}, ActionFail},
		{"status 400", &LLMError{Err: errors.New("bad"), StatusCode: 400}, ActionFail},
		{"text rate limit", errors.New("rate limit reached"), ActionRetry},
		{"text overloaded", errors.New("model overloaded"), ActionRetry},
		{"text connection reset", errors.New("read: connection reset by peer"), ActionRetry},
		{"text forbidden", errors.New("forbidden"), ActionFail},
		{"unknown", errors.New("something odd"), ActionRetry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	t.Parallel()
	quota := errors.New("monthly limit exceeded")
	if !ShouldFallback(quota) || IsRetryable(quota) || IsPermanent(quota) {
		t.Error("quota error misclassified")
	}
	if !IsPermanent(&LLMError{Err: errors.New("x"), StatusCode: 404}) {
		t.Error("404 should be permanent")
	}
}

func TestLLMErrorFormatting(t *testing.T) {
	t.Parallel()
	base := errors.New("boom")
	err := &LLMError{Err: base, StatusCode: 500, Provider: ProviderOpenAI}
	if got := err.Error(); got != "openai: boom (status: 500)" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, base) {
		t.Error("LLMError does not unwrap")
	}
	if got := (&LLMError{Err: base, Provider: ProviderGemini}).Error(); got != "gemini: boom" {
		t.Errorf("Error() without status = %q", got)
	}
}

func TestWrapError(t *testing.T) {
	t.Parallel()
	if WrapError(nil, ProviderOpenAI) != nil {
		t.Error("WrapError(nil) != nil")
	}
	var llmErr *LLMError
	if err := WrapError(errors.New("plain"), ProviderGemini); !errors.As(err, &llmErr) || llmErr.StatusCode != 0 {
		t.Errorf("WrapError() = %v", err)
	}
}

func TestErrorActionString(t *testing.T) {
	t.Parallel()
	for action, want := range map[ErrorAction]string{
		ActionRetry:     "retry",
		ActionFallback:  "fallback",
		ActionFail:      "fail",
		ErrorAction(42): "unknown",
	} {
		if got := action.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", action, got, want)
		}
	}
}
