// Copyright 2025 Phillip Lindsay
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

package errors

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/plindsay/jwtlifecycle/internal/log"
)

// ErrorContext provides contextual information about where and when an error occurred.
type ErrorContext struct {
	// Timestamp when the error occurred
	Timestamp time.Time `json:"timestamp"`
	// CorrelationID for tracing across services
	CorrelationID string `json:"correlation_id,omitempty"`
	// TraceID from OpenTelemetry
	TraceID string `json:"trace_id,omitempty"`
	// SpanID from OpenTelemetry
	SpanID string `json:"span_id,omitempty"`
	// RequestID if available
	RequestID string `json:"request_id,omitempty"`
	// Component where error occurred
	Component string `json:"component,omitempty"`
	// Operation being performed
	Operation string `json:"operation,omitempty"`
}

// NewErrorContext creates a new error context from the given context.
func NewErrorContext(ctx context.Context) *ErrorContext {
	ec := &ErrorContext{
		Timestamp: time.Now(),
	}
	if ctx == nil {
		return ec
	}

	ec.CorrelationID = log.CorrelationIDFromContext(ctx)
	ec.RequestID = log.RequestIDFromContext(ctx)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		ec.TraceID = span.SpanContext().TraceID().String()
		ec.SpanID = span.SpanContext().SpanID().String()
	}

	return ec
}

// WithComponent adds component information to the error context.
func (ec *ErrorContext) WithComponent(component string) *ErrorContext {
	ec.Component = component
	return ec
}

// WithOperation adds operation information to the error context.
func (ec *ErrorContext) WithOperation(operation string) *ErrorContext {
	ec.Operation = operation
	return ec
}

// Fields returns the non-empty context values as slog-style key/value pairs.
func (ec *ErrorContext) Fields() []any {
	var fields []any
	add := func(key, value string) {
		if value != "" {
			fields = append(fields, key, value)
		}
	}
	add("correlation_id", ec.CorrelationID)
	add("request_id", ec.RequestID)
	add("trace_id", ec.TraceID)
	add("span_id", ec.SpanID)
	add("component", ec.Component)
	add("operation", ec.Operation)
	return fields
}
