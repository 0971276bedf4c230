package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/kiarash-bot/kiarash/internal/logger"
	"github.com/kiarash-bot/kiarash/internal/metrics"
	"github.com/kiarash-bot/kiarash/internal/sentry"
)

// HandlerFunc handles one event.
type HandlerFunc func(ctx context.Context, ev Event) Response

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h with mws; the first middleware is the outermost.
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// LoggingMiddleware logs handler execution with timing and result info.
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev Event) Response {
			start := time.Now()
			resp := next(ctx, ev)

			log.WithField("kind", ev.kind()).
				WithField("outcome", string(resp.Outcome)).
				WithField("duration_ms", time.Since(start).Milliseconds()).
				WithField("reply_count", len(resp.Replies)).
				DebugContext(ctx, "Event handled")
			return resp
		}
	}
}

// MetricsMiddleware records event counts and durations.
func MetricsMiddleware(m *metrics.Metrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev Event) Response {
			start := time.Now()
			resp := next(ctx, ev)
			if m != nil {
				m.RecordEvent(ev.kind(), string(resp.Outcome), time.Since(start).Seconds())
			}
			return resp
		}
	}
}

// RecoveryMiddleware recovers from panics in handlers and replies with a generic error.
func RecoveryMiddleware(log *logger.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev Event) (resp Response) {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("kind", ev.kind()).
						WithField("panic", r).
						WithField("stack", string(debug.Stack())).
						ErrorContext(ctx, "Handler panicked")
					sentry.CaptureError(ctx, "bot", fmt.Errorf("panic: %v", r))
					resp = failed(plain(msgInternalError))
				}
			}()
			return next(ctx, ev)
		}
	}
}
