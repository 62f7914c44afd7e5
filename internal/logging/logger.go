// Package logging wraps slog with the contextual helpers the rest of
// homestar uses to tag log lines with run/node/instruction identity.
package logging

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with homestar-specific contextual fields.
type Logger struct {
	*slog.Logger
}

// New creates a new logger. format is "json" (production) or anything
// else for tinted console output (development).
func New(level, format string) *Logger {
	var handler slog.Handler

	logLevel := parseLevel(level)

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithContext attaches a trace_id already present in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if traceID := ctx.Value(traceIDKey{}); traceID != nil {
		return &Logger{Logger: l.With("trace_id", traceID)}
	}
	return l
}

// WithWorkflowCID tags every subsequent log line with the workflow CID.
func (l *Logger) WithWorkflowCID(cid string) *Logger {
	return &Logger{Logger: l.With("workflow_cid", cid)}
}

// WithInstructionCID tags every subsequent log line with the instruction CID.
func (l *Logger) WithInstructionCID(cid string) *Logger {
	return &Logger{Logger: l.With("instruction_cid", cid)}
}

// WithNodeID tags every subsequent log line with a task index.
func (l *Logger) WithNodeID(idx int) *Logger {
	return &Logger{Logger: l.With("task_index", idx)}
}

// Error logs an error with a stack trace attached, mirroring the
// teacher's panic-adjacent error logging for unexpected failures.
func (l *Logger) Error(msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	l.Logger.Error(msg, args...)
}

type traceIDKey struct{}

// WithTraceID stashes a trace id on the context for WithContext to pick up.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
