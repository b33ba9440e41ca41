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

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names for token operations.
const (
	SpanTokenCreate = "token.create"
	SpanTokenDecode = "token.decode"
	SpanTokenRevoke = "token.revoke"
)

// TracingHelper provides convenient methods for creating and managing spans
// with consistent attributes and error handling.
type TracingHelper struct {
	tracer trace.Tracer
}

// NewTracingHelper creates a tracing helper backed by the global tracer provider.
//
// Example:
//
//	helper := telemetry.NewTracingHelper("jwtlifecycle")
//	ctx, span := helper.StartSpan(ctx, "operation-name")
//	defer span.End()
func NewTracingHelper(name string) *TracingHelper {
	return &TracingHelper{tracer: otel.Tracer(name)}
}

// NewTracingHelperWithProvider creates a tracing helper bound to tp instead
// of the global provider.
func NewTracingHelperWithProvider(tp trace.TracerProvider, name string) *TracingHelper {
	return &TracingHelper{tracer: tp.Tracer(name)}
}

// StartSpan starts a new span with the given name and returns the context and span.
// The span should be ended by calling span.End() when the operation completes.
func (t *TracingHelper) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// StartTokenSpan starts an internal span for a token operation.
func (t *TracingHelper) StartTokenSpan(ctx context.Context, name, encoder string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("token.operation", name),
			attribute.String("token.encoder", encoder),
		),
	)
}

// StartStoreSpan starts a client span for a revocation store call.
func (t *TracingHelper) StartStoreSpan(ctx context.Context, operation, system string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("revocation.%s", operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", operation),
		),
	)
}

// RecordError records an error on the current span and sets the span status.
func RecordError(span trace.Span, err error, description string) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, description)
	span.SetAttributes(
		attribute.String("error.type", fmt.Sprintf("%T", err)),
		attribute.String("error.message", err.Error()),
	)
}

// RecordOutcome tags the span with the operation outcome. Anything other
// than "success" or "accepted" also marks the span as failed.
func RecordOutcome(span trace.Span, outcome string) {
	span.SetAttributes(attribute.String("token.outcome", outcome))
	switch outcome {
	case "success", "accepted":
		span.SetStatus(codes.Ok, "")
	default:
		span.SetStatus(codes.Error, outcome)
	}
}

// AddSpanEvent adds an event to the span with optional attributes.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
