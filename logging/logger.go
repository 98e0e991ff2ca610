// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer GraphLogger with contextual
// helpers (execution, component) and domain specific logging helpers for
// model calls and node execution.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger defines the minimal logging interface for AgentGraph.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// GraphLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. It should be cheap to copy via With* methods.
type GraphLogger struct {
	logger      *slog.Logger
	component   string
	executionID string
	workflowID  string
}

// LoggerConfig configures construction of a GraphLogger.
type LoggerConfig struct {
	Level       slog.Level
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	ExecutionID string
	WorkflowID  string
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: slog.LevelInfo, Format: "json", Output: os.Stdout, AddSource: true}
}

// NewLogger builds a GraphLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *GraphLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &GraphLogger{logger: slog.New(handler), component: cfg.Component, executionID: cfg.ExecutionID, workflowID: cfg.WorkflowID}
}

// WithComponent sets the logical component (parser, engine, groupchat, etc.).
func (l *GraphLogger) WithComponent(c string) *GraphLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithExecution attaches workflow and execution identifiers.
func (l *GraphLogger) WithExecution(workflowID, executionID string) *GraphLogger {
	nl := *l
	nl.workflowID = workflowID
	nl.executionID = executionID
	return &nl
}

func (l *GraphLogger) attrs(extra []any) []any {
	args := make([]any, 0, len(extra)+6)
	if l.component != "" {
		args = append(args, "component", l.component)
	}
	if l.workflowID != "" {
		args = append(args, "workflow_id", l.workflowID)
	}
	if l.executionID != "" {
		args = append(args, "execution_id", l.executionID)
	}
	return append(args, extra...)
}

// Debug logs at debug level.
func (l *GraphLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, l.attrs(args)...)
}

// Info logs at info level.
func (l *GraphLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.attrs(args)...)
}

// Warn logs at warn level.
func (l *GraphLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, l.attrs(args)...)
}

// Error logs at error level.
func (l *GraphLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, l.attrs(args)...)
}

// LogModelCall records model call latency, token usage and success.
func (l *GraphLogger) LogModelCall(provider, model string, tokens int, dur time.Duration, err error) {
	args := l.attrs([]any{"provider", provider, "model", model, "token_count", tokens, "duration", dur})
	if err != nil {
		l.logger.LogAttrs(context.Background(), slog.LevelError, "Model call failed", argsToAttrs(append(args, "error", err.Error()))...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "Model call completed", argsToAttrs(args)...)
}

// LogNodeExecution records the outcome of a single node dispatch.
func (l *GraphLogger) LogNodeExecution(nodeID, nodeType string, dur time.Duration, err error) {
	args := l.attrs([]any{"node_id", nodeID, "node_type", nodeType, "duration", dur})
	if err != nil {
		l.logger.Error("Node execution failed", append(args, "error", err.Error())...)
		return
	}
	l.logger.Info("Node execution completed", args...)
}

func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}
