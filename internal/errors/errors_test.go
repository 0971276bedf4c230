package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		checkFn  func(error) bool
		expected bool
	}{
		{"ErrNotFound is recognized", ErrNotFound, IsNotFound, true},
		{"joined ErrNotFound is recognized", errors.Join(ErrNotFound, errors.New("ctx")), IsNotFound, true},
		{"different error is not ErrNotFound", ErrRateLimited, IsNotFound, false},
		{"ErrRateLimited is recognized", fmt.Errorf("user 1: %w", ErrRateLimited), IsRateLimited, true},
		{"ErrQuotaExceeded is recognized", fmt.Errorf("ai chat: %w", ErrQuotaExceeded), IsQuotaExceeded, true},
		{"quota is not flood", ErrQuotaExceeded, IsRateLimited, false},
		{"ErrNotParseable is recognized", fmt.Errorf("day: %w", ErrNotParseable), IsNotParseable, true},
		{"UpstreamError matches ErrUpstream", NewUpstreamError("tgju", 502, errors.New("bad gateway")), IsUpstream, true},
		{"nil is nothing", nil, IsUpstream, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.checkFn(tt.err); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestUpstreamError(t *testing.T) {
	t.Parallel()
	baseErr := errors.New("connection reset")

	err := NewUpstreamError("weatherapi", 503, baseErr)
	if !errors.Is(err, baseErr) {
		t.Error("expected UpstreamError to unwrap to cause")
	}
	expected := "upstream error (provider=weatherapi, status=503): connection reset"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}

	noStatus := NewUpstreamError("weatherapi", 0, baseErr)
	expected = "upstream error (provider=weatherapi): connection reset"
	if noStatus.Error() != expected {
		t.Errorf("expected %q, got %q", expected, noStatus.Error())
	}

	var target *UpstreamError
	if !errors.As(fmt.Errorf("fetch: %w", err), &target) || target.StatusCode != 503 {
		t.Error("expected errors.As to find UpstreamError")
	}
}
