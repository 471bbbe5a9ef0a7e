package virtualizer

import (
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/virtualizer/model"
)

// Logger wraps slog.Logger with virtualizer-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithContext adds the owner context ID to the logger.
func (l *Logger) WithContext(ctx *model.Context) *Logger {
	return &Logger{
		Logger: l.Logger.With("context", ctx.ID()),
	}
}

// WithUID adds an object UID field to the logger.
func (l *Logger) WithUID(uid string) *Logger {
	return &Logger{
		Logger: l.Logger.With("uid", uid),
	}
}

// LogPageOut logs a page-out operation.
func (l *Logger) LogPageOut(uid string, d time.Duration, err error) {
	if err != nil {
		l.Error("page out failed",
			"uid", uid,
			"error", err,
		)
	} else {
		l.Debug("page out completed",
			"uid", uid,
			"duration", d,
		)
	}
}

// LogPageIn logs a page-in operation.
func (l *Logger) LogPageIn(uid string, d time.Duration, err error) {
	if err != nil {
		l.Error("page in failed",
			"uid", uid,
			"error", err,
		)
	} else {
		l.Debug("page in completed",
			"uid", uid,
			"duration", d,
		)
	}
}

// LogEviction logs an eviction round.
func (l *Logger) LogEviction(victims, failed, resident int) {
	if failed > 0 {
		l.Warn("eviction completed with failures",
			"victims", victims,
			"failed", failed,
			"resident", resident,
		)
	} else {
		l.Debug("eviction completed",
			"victims", victims,
			"resident", resident,
		)
	}
}

// LogDispose logs the disposal of an owner context.
func (l *Logger) LogDispose(ctx *model.Context, dropped int, err error) {
	if err != nil {
		l.Error("context dispose failed",
			"context", ctx.ID(),
			"dropped", dropped,
			"error", err,
		)
	} else {
		l.Debug("context disposed",
			"context", ctx.ID(),
			"dropped", dropped,
		)
	}
}
