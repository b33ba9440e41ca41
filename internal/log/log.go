// Copyright 2025 Paddy Lindsay
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides structured logging for the application.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// loggerKey is the context key for the logger.
	loggerKey = contextKey("logger")
	// requestIDKey is the context key for the request ID.
	requestIDKey = contextKey("request_id")
	// correlationIDKey is the context key for the correlation ID.
	correlationIDKey = contextKey("correlation_id")
)

// Config controls how a Logger renders records.
type Config struct {
	Level          slog.Level
	Format         string // "json" or "text"
	ServiceName    string
	ServiceVersion string
	Environment    string
	AddSource      bool
	Output         io.Writer
}

// DefaultConfig returns a JSON, info-level configuration writing to stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:          slog.LevelInfo,
		Format:         "json",
		ServiceName:    "jwtlifecycle",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Output:         os.Stdout,
	}
}

// Logger wraps slog.Logger with context-aware helpers.
type Logger struct {
	*slog.Logger
	config *Config
}

// New creates a new logger. A nil config uses DefaultConfig.
func New(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     config.Level,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(config.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	base := slog.New(handler)
	if config.ServiceName != "" {
		base = base.With(
			"service", config.ServiceName,
			"version", config.ServiceVersion,
			"environment", config.Environment,
		)
	}

	return &Logger{Logger: base, config: config}
}

// ParseLevel converts a textual level into a slog.Level, defaulting to info.
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

// Debug logs at debug level with fields drawn from ctx.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.Logger.DebugContext(ctx, msg, append(contextFields(ctx), args...)...)
}

// Info logs at info level with fields drawn from ctx.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.Logger.InfoContext(ctx, msg, append(contextFields(ctx), args...)...)
}

// Warn logs at warn level with fields drawn from ctx.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.Logger.WarnContext(ctx, msg, append(contextFields(ctx), args...)...)
}

// Error logs at error level with fields drawn from ctx.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.Logger.ErrorContext(ctx, msg, append(contextFields(ctx), args...)...)
}

// Slog returns a plain *slog.Logger for packages that take one. Records
// logged through its Context methods carry the same request-scoped fields
// as the Logger's own methods.
func (l *Logger) Slog() *slog.Logger {
	return slog.New(contextHandler{l.Logger.Handler()})
}

// contextHandler adds contextFields to every record it handles.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Add(contextFields(ctx)...)
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// contextFields extracts request-scoped identifiers for every record.
func contextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var fields []any
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, "request_id", id)
	}
	if id := CorrelationIDFromContext(ctx); id != "" {
		fields = append(fields, "correlation_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return fields
}

// FromContext returns the logger from the context, or a default logger if none is found.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
		return logger
	}
	return New(nil)
}

// WithContext returns a new context with the logger embedded.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithRequestID returns a new context carrying the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithCorrelationID returns a new context carrying the correlation ID.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext returns the correlation ID, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}
