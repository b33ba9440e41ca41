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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{
		Level:          slog.LevelDebug,
		Format:         "json",
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		AddSource:      false,
		Output:         buf,
	})
}

func TestOperationLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferedLogger(&buf)
	ctx := context.Background()

	op := logger.StartOperation(ctx, "test-operation", "param1", "value1")
	require.NotNil(t, op)

	op.Complete(ctx, "result", "ok")

	output := buf.String()
	assert.Contains(t, output, "operation started")
	assert.Contains(t, output, "operation completed")
	assert.Contains(t, output, "test-operation")
	assert.Contains(t, output, "success")
	assert.Contains(t, output, "test-service")
}

func TestOperationLoggerFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferedLogger(&buf)
	ctx := context.Background()

	op := logger.StartOperation(ctx, "test-operation", "param1", "value1")
	require.NotNil(t, op)

	op.Fail(ctx, errors.New("test error"), "error_code", "TEST_ERROR")

	output := buf.String()
	assert.Contains(t, output, "operation failed")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "test error")
	assert.Contains(t, output, "TEST_ERROR")
}

func TestStoreLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferedLogger(&buf)
	ctx := context.Background()

	s := logger.StartStoreOperation(ctx, "sqlite", "revoke")
	s.Complete(ctx, "token_id", "abc")

	f := logger.StartStoreOperation(ctx, "redis", "exists")
	f.Fail(ctx, errors.New("connection refused"))

	output := buf.String()
	assert.Contains(t, output, "store operation completed")
	assert.Contains(t, output, "sqlite")
	assert.Contains(t, output, "store operation failed")
	assert.Contains(t, output, "connection refused")
}

func TestTokenLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferedLogger(&buf)
	tl := logger.NewTokenLogger()
	ctx := context.Background()

	tl.TokenIssued(ctx, "alice", "jti-1", time.Unix(1700000000, 0))
	tl.TokenAccepted(ctx, "alice", "jti-1")
	tl.TokenRejected(ctx, "banned", "jti-2", "user is banned")
	tl.TokenRevoked(ctx, "alice", "jti-1", time.Unix(1700000000, 0))

	output := buf.String()
	assert.Contains(t, output, "token issued")
	assert.Contains(t, output, "token accepted")
	assert.Contains(t, output, "token rejected")
	assert.Contains(t, output, "user is banned")
	assert.Contains(t, output, `"security_event":true`)
	assert.Contains(t, output, "token revoked")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := WithFields(newBufferedLogger(&buf), "component", "tokenctl")

	logger.Info(context.Background(), "hello")
	assert.Contains(t, buf.String(), `"component":"tokenctl"`)
}
