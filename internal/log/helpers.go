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

package log

import (
	"context"
	"time"
)

// OperationLogger provides structured logging for operations with timing and status.
type OperationLogger struct {
	logger    *Logger
	operation string
	startTime time.Time
	fields    []any
}

// StartOperation starts logging an operation with timing information.
func (l *Logger) StartOperation(ctx context.Context, operation string, fields ...any) *OperationLogger {
	op := &OperationLogger{
		logger:    l,
		operation: operation,
		startTime: time.Now(),
		fields:    fields,
	}

	op.logger.Debug(ctx, "operation started", append([]any{
		"operation", operation,
		"start_time", op.startTime.Format(time.RFC3339),
	}, fields...)...)

	return op
}

// Complete completes the operation with success status.
func (op *OperationLogger) Complete(ctx context.Context, fields ...any) {
	duration := time.Since(op.startTime)

	allFields := append([]any{
		"operation", op.operation,
		"status", "success",
		"duration_ms", duration.Milliseconds(),
	}, op.fields...)
	allFields = append(allFields, fields...)

	op.logger.Info(ctx, "operation completed", allFields...)
}

// Fail completes the operation with failure status.
func (op *OperationLogger) Fail(ctx context.Context, err error, fields ...any) {
	duration := time.Since(op.startTime)

	allFields := append([]any{
		"operation", op.operation,
		"status", "failed",
		"duration_ms", duration.Milliseconds(),
		"error", errString(err),
	}, op.fields...)
	allFields = append(allFields, fields...)

	op.logger.Error(ctx, "operation failed", allFields...)
}

// StoreLogger provides structured logging for revocation store operations.
type StoreLogger struct {
	logger    *Logger
	store     string
	operation string
	startTime time.Time
}

// StartStoreOperation starts logging a store operation.
func (l *Logger) StartStoreOperation(ctx context.Context, store, operation string) *StoreLogger {
	s := &StoreLogger{
		logger:    l,
		store:     store,
		operation: operation,
		startTime: time.Now(),
	}
	s.logger.Debug(ctx, "store operation started",
		"store", store,
		"operation", operation,
	)
	return s
}

// Complete logs a successful store operation.
func (s *StoreLogger) Complete(ctx context.Context, fields ...any) {
	allFields := append([]any{
		"store", s.store,
		"operation", s.operation,
		"duration_ms", time.Since(s.startTime).Milliseconds(),
	}, fields...)
	s.logger.Debug(ctx, "store operation completed", allFields...)
}

// Fail logs a failed store operation.
func (s *StoreLogger) Fail(ctx context.Context, err error, fields ...any) {
	allFields := append([]any{
		"store", s.store,
		"operation", s.operation,
		"duration_ms", time.Since(s.startTime).Milliseconds(),
		"error", errString(err),
	}, fields...)
	s.logger.Error(ctx, "store operation failed", allFields...)
}

// TokenLogger provides structured logging for token lifecycle events.
type TokenLogger struct {
	logger *Logger
}

// NewTokenLogger creates a new token logger.
func (l *Logger) NewTokenLogger() *TokenLogger {
	return &TokenLogger{logger: l}
}

// TokenIssued logs token creation.
func (tl *TokenLogger) TokenIssued(ctx context.Context, subject, tokenID string, expiresAt time.Time) {
	tl.logger.Info(ctx, "token issued",
		"subject", subject,
		"token_id", tokenID,
		"expires_at", expiresAt.Format(time.RFC3339),
		"event_type", "token_issued",
	)
}

// TokenAccepted logs a token that passed every decode hook.
func (tl *TokenLogger) TokenAccepted(ctx context.Context, subject, tokenID string) {
	tl.logger.Debug(ctx, "token accepted",
		"subject", subject,
		"token_id", tokenID,
		"event_type", "token_accepted",
	)
}

// TokenRejected logs a token vetoed by a decode hook.
func (tl *TokenLogger) TokenRejected(ctx context.Context, subject, tokenID, reason string) {
	tl.logger.Warn(ctx, "token rejected",
		"subject", subject,
		"token_id", tokenID,
		"reason", reason,
		"event_type", "token_rejected",
		"security_event", true,
	)
}

// TokenRevoked logs token revocation.
func (tl *TokenLogger) TokenRevoked(ctx context.Context, subject, tokenID string, until time.Time) {
	tl.logger.Info(ctx, "token revoked",
		"subject", subject,
		"token_id", tokenID,
		"revoked_until", until.Format(time.RFC3339),
		"event_type", "token_revoked",
	)
}

// WithFields creates a logger with predefined fields.
func WithFields(logger *Logger, fields ...any) *Logger {
	return &Logger{Logger: logger.Logger.With(fields...), config: logger.config}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
