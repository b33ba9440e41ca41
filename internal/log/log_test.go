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

// Package log_test provides tests for the log package.
package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plindsay/jwtlifecycle/internal/log"
)

func TestNew(t *testing.T) {
	logger := log.New(nil)
	require.NotNil(t, logger)
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&log.Config{Format: "json", Output: &buf})
	ctx := log.WithContext(context.Background(), logger)
	retrievedLogger := log.FromContext(ctx)
	require.NotNil(t, retrievedLogger)

	retrievedLogger.Info(ctx, "test message")
	assert.Contains(t, buf.String(), "test message")
}

func TestFromContext_NoLogger(t *testing.T) {
	logger := log.FromContext(context.Background())
	require.NotNil(t, logger)
}

func TestContextFieldsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&log.Config{Format: "json", Output: &buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithCorrelationID(ctx, "corr-456")
	logger.Warn(ctx, "with ids")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"correlation_id":"corr-456"`)
	assert.Equal(t, "req-123", log.RequestIDFromContext(ctx))
	assert.Equal(t, "corr-456", log.CorrelationIDFromContext(ctx))
}

func TestSlog_KeepsContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&log.Config{Format: "json", Output: &buf})

	ctx := log.WithRequestID(context.Background(), "req-789")
	logger.Slog().With("component", "manager").InfoContext(ctx, "token rejected")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-789"`)
	assert.Contains(t, out, `"component":"manager"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&log.Config{Level: slog.LevelWarn, Format: "text", Output: &buf})

	logger.Info(context.Background(), "hidden")
	logger.Error(context.Background(), "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, log.ParseLevel(in), in)
	}
}
