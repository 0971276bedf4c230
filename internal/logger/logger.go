// Package logger provides structured logging utilities for the application.
// It wraps log/slog with JSON formatting, enriches records with the user, chat
// and request ids carried in the context, and can ship logs to Better Stack.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the application logger
type Logger struct {
	*slog.Logger
}

// Options configures Setup.
type Options struct {
	Level  string    // debug, info, warn, error
	Writer io.Writer // defaults to os.Stdout

	// BetterStackToken enables remote shipping when non-empty.
	BetterStackToken string
	// Remote tunes the async queue in front of the remote handler.
	Remote AsyncOptions
}

// New creates a new logger instance with JSON formatting
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a new logger instance with JSON formatting writing to the provided writer
func NewWithWriter(level string, w io.Writer) *Logger {
	return &Logger{Logger: slog.New(NewContextHandler(jsonHandler(w, ParseLevel(level))))}
}

// Setup builds the process logger: JSON to Writer, plus Better Stack when a
// token is configured. The returned shutdown flushes queued remote records.
func Setup(opts Options) (*Logger, func(context.Context) error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	level := ParseLevel(opts.Level)

	local := jsonHandler(w, level)
	if opts.BetterStackToken == "" {
		return &Logger{Logger: slog.New(NewContextHandler(local))}, func(context.Context) error { return nil }
	}

	remote := NewAsyncHandler(newBetterStackHandler(opts.BetterStackToken, level), opts.Remote)
	handler := NewContextHandler(NewMultiHandler(local, remote))
	return &Logger{Logger: slog.New(handler)}, remote.Shutdown
}

// ParseLevel maps a level name to a slog.Level; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func jsonHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
			case slog.LevelKey:
				a.Key = "level"
				name := a.Value.String()
				if name == "WARN" {
					name = "warning"
				}
				a.Value = slog.StringValue(strings.ToLower(name))
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})
}

// WithModule creates a new entry with module field
func (l *Logger) WithModule(module string) *Logger {
	return &Logger{Logger: l.With("module", module)}
}

// WithError creates a new entry with error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With("error", err)}
}

// WithField creates a new entry with a single field
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Logger: l.With(key, value)}
}

// WithFields creates a new entry with multiple fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...any) {
	l.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...))
}

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...any) {
	l.Debug(fmt.Sprintf(format, args...))
}
