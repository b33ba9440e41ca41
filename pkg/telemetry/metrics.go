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

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
)

// Outcome labels attached to token metrics.
const (
	OutcomeSuccess         = "success"
	OutcomeAccepted        = "accepted"
	OutcomeDecodingFailure = "decoding_failure"
	OutcomePolicyRejection = "policy_rejection"
	OutcomeError           = "error"
)

// TokenMetrics records token lifecycle metrics. It satisfies the manager's
// Recorder interface.
type TokenMetrics struct {
	meter metric.Meter

	createdTotal      metric.Int64Counter
	decodedTotal      metric.Int64Counter
	operationDuration metric.Float64Histogram
	storeDuration     metric.Float64Histogram
}

// NewTokenMetrics creates token instruments on the global meter provider.
//
// Example:
//
//	metrics, err := telemetry.NewTokenMetrics("jwtlifecycle")
//	if err != nil {
//		log.Fatal(err)
//	}
func NewTokenMetrics(serviceName string) (*TokenMetrics, error) {
	return NewTokenMetricsWithMeter(otel.Meter(serviceName))
}

// NewTokenMetricsWithMeter creates token instruments on meter.
func NewTokenMetricsWithMeter(meter metric.Meter) (*TokenMetrics, error) {
	createdTotal, err := meter.Int64Counter(
		"tokens_created_total",
		metric.WithDescription("Total number of token creation attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens_created_total counter: %w", err)
	}

	decodedTotal, err := meter.Int64Counter(
		"tokens_decoded_total",
		metric.WithDescription("Total number of token decode attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens_decoded_total counter: %w", err)
	}

	operationDuration, err := meter.Float64Histogram(
		"token_operation_duration",
		metric.WithDescription("Duration of token create and decode operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_operation_duration histogram: %w", err)
	}

	storeDuration, err := meter.Float64Histogram(
		"revocation_store_duration",
		metric.WithDescription("Duration of revocation store operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create revocation_store_duration histogram: %w", err)
	}

	return &TokenMetrics{
		meter:             meter,
		createdTotal:      createdTotal,
		decodedTotal:      decodedTotal,
		operationDuration: operationDuration,
		storeDuration:     storeDuration,
	}, nil
}

// RecordCreate records a Create call.
func (m *TokenMetrics) RecordCreate(ctx context.Context, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("operation", "create"),
		attribute.String("outcome", CreateOutcome(err)),
	)
	m.createdTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordDecode records a Decode call.
func (m *TokenMetrics) RecordDecode(ctx context.Context, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("operation", "decode"),
		attribute.String("outcome", DecodeOutcome(err)),
	)
	m.decodedTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordStoreOperation records a revocation store call.
func (m *TokenMetrics) RecordStoreOperation(ctx context.Context, duration time.Duration, store, operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}

	m.storeDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("store", store),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// CreateOutcome maps a Create result to its outcome label.
func CreateOutcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return OutcomeError
}

// DecodeOutcome maps a Decode result to its outcome label.
func DecodeOutcome(err error) string {
	if err == nil {
		return OutcomeAccepted
	}
	switch apperrors.CodeOf(err) {
	case apperrors.DecodingFailure:
		return OutcomeDecodingFailure
	case apperrors.PolicyRejection:
		return OutcomePolicyRejection
	default:
		return OutcomeError
	}
}
