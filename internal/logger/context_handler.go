package logger

import (
	"context"
	"log/slog"

	"github.com/kiarash-bot/kiarash/internal/ctxutil"
)

// ContextHandler wraps another handler and adds the user_id, chat_id and
// request_id found in the record's context, so call sites never pass them
// by hand.
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler creates a new ContextHandler that wraps the provided handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle adds the tracing attributes and delegates to the wrapped handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if userID, ok := ctxutil.GetUserID(ctx); ok {
			r.AddAttrs(slog.Int64("user_id", userID))
		}
		if chatID, ok := ctxutil.GetChatID(ctx); ok {
			r.AddAttrs(slog.Int64("chat_id", chatID))
		}
		if requestID, ok := ctxutil.GetRequestID(ctx); ok {
			r.AddAttrs(slog.String("request_id", requestID))
		}
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler wrapping the handler with attrs.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a new ContextHandler wrapping the handler with the group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}
