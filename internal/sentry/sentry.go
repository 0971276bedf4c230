// Package sentry wraps the Sentry Go SDK for error reporting.
// Reporting is optional: with an empty DSN every call is a no-op.
package sentry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kiarash-bot/kiarash/internal/ctxutil"
)

// Config holds Sentry configuration.
type Config struct {
	// DSN of the Sentry (or Sentry-compatible) project. Empty disables reporting.
	DSN string

	// Environment identifies the deployment environment (e.g., "production", "staging").
	Environment string

	// Release identifies the application release version.
	Release string

	// SampleRate controls error sampling (0.0-1.0, default 1.0 = 100%).
	SampleRate float64

	// TracesSampleRate enables performance tracing when > 0.
	TracesSampleRate float64

	// Debug enables Sentry SDK debug logging.
	Debug bool
}

// Initialize sets up the Sentry SDK.
// If DSN is empty, Sentry is disabled and nil is returned.
func Initialize(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}
	if !strings.HasPrefix(cfg.DSN, "https://") && !strings.HasPrefix(cfg.DSN, "http://") {
		return fmt.Errorf("sentry DSN must be an http(s) URL")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
	})
}

// Flush waits for buffered events to be sent to the server.
// Returns true if all events were sent within the timeout.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureError reports err with the user, chat and request ids found in ctx.
// module tags the event with the component that failed.
func CaptureError(ctx context.Context, module string, err error) {
	if err == nil || !IsEnabled() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(eventTags(ctx, module))
		if userID, ok := ctxutil.GetUserID(ctx); ok {
			scope.SetUser(sentry.User{ID: fmt.Sprintf("%d", userID)})
		}
		hub.CaptureException(err)
	})
}

// eventTags collects the tags attached to a reported error.
func eventTags(ctx context.Context, module string) map[string]string {
	tags := map[string]string{}
	if module != "" {
		tags["module"] = module
	}
	if chatID, ok := ctxutil.GetChatID(ctx); ok {
		tags["chat_id"] = fmt.Sprintf("%d", chatID)
	}
	if requestID, ok := ctxutil.GetRequestID(ctx); ok {
		tags["request_id"] = requestID
	}
	return tags
}

// CaptureMessage captures a message and sends it to Sentry.
func CaptureMessage(message string) {
	sentry.CaptureMessage(message)
}
