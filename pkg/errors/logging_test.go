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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plindsay/jwtlifecycle/internal/log"
)

// MockLogger implements the Logger interface for testing.
type MockLogger struct {
	LoggedMessages []LoggedMessage
}

type LoggedMessage struct {
	Level   string
	Message string
	Args    []any
}

func (ml *MockLogger) record(level, msg string, args []any) {
	ml.LoggedMessages = append(ml.LoggedMessages, LoggedMessage{
		Level:   level,
		Message: msg,
		Args:    args,
	})
}

func (ml *MockLogger) Error(_ context.Context, msg string, args ...any) { ml.record("error", msg, args) }
func (ml *MockLogger) Warn(_ context.Context, msg string, args ...any)  { ml.record("warn", msg, args) }
func (ml *MockLogger) Info(_ context.Context, msg string, args ...any)  { ml.record("info", msg, args) }
func (ml *MockLogger) Debug(_ context.Context, msg string, args ...any) { ml.record("debug", msg, args) }

func TestLogError(t *testing.T) {
	ctx := context.Background()
	mockLogger := &MockLogger{}

	LogError(ctx, mockLogger, nil, "ignored", nil)
	assert.Empty(t, mockLogger.LoggedMessages)

	LogError(ctx, mockLogger, NewValidationError("test validation error", "test details"), "issue failed", nil)
	require.Len(t, mockLogger.LoggedMessages, 1)

	logged := mockLogger.LoggedMessages[0]
	assert.Equal(t, "warn", logged.Level)
	assert.Equal(t, "issue failed", logged.Message)
	assert.Contains(t, logged.Args, "error_code")
	assert.Contains(t, logged.Args, "VALIDATION_ERROR")
	assert.Contains(t, logged.Args, "test details")
}

func TestLogError_WithErrorContext(t *testing.T) {
	ctx := log.WithRequestID(context.Background(), "req-9")
	mockLogger := &MockLogger{}

	ec := NewErrorContext(ctx).WithComponent("tokenctl").WithOperation("revoke")
	LogError(ctx, mockLogger, NewInternalError("test internal error", errors.New("boom")), "revoke failed", ec)
	require.Len(t, mockLogger.LoggedMessages, 1)

	logged := mockLogger.LoggedMessages[0]
	assert.Equal(t, "error", logged.Level)
	assert.Equal(t, "revoke failed", logged.Message)
	assert.Contains(t, logged.Args, "boom")
	assert.Contains(t, logged.Args, "req-9")
	assert.Contains(t, logged.Args, "tokenctl")
	assert.Contains(t, logged.Args, "revoke")
}

func TestDetermineLogLevel(t *testing.T) {
	testCases := []struct {
		name     string
		error    error
		expected string
	}{
		{name: "validation", error: NewValidationError("test"), expected: "warn"},
		{name: "rate limit", error: NewRateLimitError(1, 1), expected: "warn"},
		{name: "decoding", error: NewDecodingError(errors.New("malformed")), expected: "info"},
		{name: "policy", error: NewPolicyRejection("banned"), expected: "info"},
		{name: "encoding", error: NewEncodingError(errors.New("bad key")), expected: "error"},
		{name: "storage", error: NewStorageError("redis", "exists", nil), expected: "error"},
		{name: "standard", error: errors.New("plain"), expected: "error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, determineLogLevel(tc.error))
		})
	}
}

func TestLoggingFields(t *testing.T) {
	fields := LoggingFields(NewPolicyRejection("user is banned"))
	assert.Contains(t, fields, "POLICY_REJECTION")
	assert.Contains(t, fields, "metadata_reason")
	assert.Contains(t, fields, "user is banned")

	fields = LoggingFields(errors.New("plain"))
	assert.Equal(t, []any{"error_type", "standard_error", "error_message", "plain"}, fields)

	assert.Nil(t, LoggingFields(nil))
}

func TestErrorContextFields(t *testing.T) {
	ctx := log.WithCorrelationID(context.Background(), "corr-1")
	ec := NewErrorContext(ctx).WithComponent("token").WithOperation("decode")

	fields := ec.Fields()
	assert.Equal(t, []any{
		"correlation_id", "corr-1",
		"component", "token",
		"operation", "decode",
	}, fields)
	assert.False(t, ec.Timestamp.IsZero())
}
