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

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"TOKEN_SECRET_KEY", "TOKEN_TTL", "REVOCATION_DSN", "REDIS_ADDR", "LOG_LEVEL"} {
		t.Setenv(name, "")
	}

	dir := t.TempDir()
	content := fmt.Sprintf(`
token:
  ttl: 300
encoder:
  secretKey: "0123456789abcdef0123456789abcdef"
claims:
  issuer: tokenctl-test
revocation:
  backend: sqlite
  dsn: %q
log:
  level: debug
`, filepath.Join(dir, "revoked.db"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestTokenctl_Lifecycle(t *testing.T) {
	cfg := writeTestConfig(t)

	out, logs, err := run(t, "", "--config", cfg, "issue", "--user", "alice", "--claim", "role=admin", "--claim", "level=3")
	require.NoError(t, err)
	tok := strings.TrimSpace(out)
	require.NotEmpty(t, tok)
	assert.Contains(t, logs, `"event_type":"token_issued"`)
	assert.Contains(t, logs, `"request_id"`)
	assert.Contains(t, logs, `"command":"issue"`)

	out, _, err = run(t, "", "--config", cfg, "decode", tok)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "tokenctl-test", payload["iss"])
	user, ok := payload["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "admin", user["role"])
	assert.EqualValues(t, 3, user["level"])

	out, _, err = run(t, tok+"\n", "--config", cfg, "decode", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"alice"`)

	out, _, err = run(t, "", "--config", cfg, "decode", "--header", "Bearer "+tok)
	require.NoError(t, err)
	assert.Contains(t, out, `"alice"`)

	out, _, err = run(t, "", "--config", cfg, "revoke", tok)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "revoked "), out)

	_, _, err = run(t, "", "--config", cfg, "decode", tok)
	require.Error(t, err)
	assert.True(t, apperrors.IsPolicyRejection(err))
	assert.Equal(t, exitInvalidToken, exitCode(err))

	out, _, err = run(t, "", "--config", cfg, "purge")
	require.NoError(t, err)
	assert.Equal(t, "purged 0 entries\n", out)
}

func TestTokenctl_DecodeInvalid(t *testing.T) {
	cfg := writeTestConfig(t)

	_, _, err := run(t, "", "--config", cfg, "decode", "garbage")
	require.Error(t, err)
	assert.True(t, apperrors.IsDecodingFailure(err))
	assert.Equal(t, exitInvalidToken, exitCode(err))
}

func TestTokenctl_UsageErrors(t *testing.T) {
	cfg := writeTestConfig(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "issue without user", args: []string{"--config", cfg, "issue"}, code: exitError},
		{name: "malformed claim", args: []string{"--config", cfg, "issue", "--user", "alice", "--claim", "role"}, code: exitInvalidInput},
		{name: "decode without token", args: []string{"--config", cfg, "decode"}, code: exitError},
		{name: "bad header", args: []string{"--config", cfg, "decode", "--header", "Basic abc"}, code: exitInvalidInput},
		{name: "missing config", args: []string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "issue", "--user", "alice"}, code: exitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, exitCode(err))
		})
	}
}

func TestParseIdentity(t *testing.T) {
	identity, err := parseIdentity("alice", []string{"role=admin", "groups=[\"a\",\"b\"]", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "alice", identity["username"])
	assert.Equal(t, "admin", identity["role"])
	assert.Equal(t, []any{"a", "b"}, identity["groups"])
	assert.Equal(t, "a=b", identity["note"])

	_, err = parseIdentity("alice", []string{"=value"})
	assert.True(t, apperrors.IsValidation(err))
}
