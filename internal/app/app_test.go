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

package app_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plindsay/jwtlifecycle/internal/app"
	"github.com/plindsay/jwtlifecycle/internal/config"
	"github.com/plindsay/jwtlifecycle/internal/log"
	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/listener"
	"github.com/plindsay/jwtlifecycle/pkg/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Encoder.SecretKey = testSecret
	cfg.Revocation.DSN = ":memory:"
	cfg.Claims.Issuer = "https://issuer.example"
	cfg.Claims.Audience = []string{"api"}
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) (*app.App, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := log.New(&log.Config{Output: &buf, Level: slog.LevelDebug})

	a, err := app.New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a, &buf
}

func TestApp_IssueDecodeRevoke(t *testing.T) {
	a, buf := newApp(t, testConfig())
	ctx := context.Background()

	tok, err := a.Issue(ctx, token.Identity{"username": "alice"})
	require.NoError(t, err)

	payload, err := a.Decode(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "https://issuer.example", payload[token.ClaimIssuer])
	assert.Equal(t, "api", payload[token.ClaimAudience])
	jti, ok := payload.String(token.ClaimTokenID)
	require.True(t, ok)
	assert.NotEmpty(t, jti)

	identity, ok := a.Manager.Identity(payload)
	require.True(t, ok)
	assert.Equal(t, "alice", identity)

	revoked, err := a.Revoke(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, jti, revoked[token.ClaimTokenID])

	_, err = a.Decode(ctx, tok)
	require.Error(t, err)
	assert.True(t, apperrors.IsPolicyRejection(err))
	assert.Contains(t, err.Error(), listener.ReasonRevoked)

	_, err = a.Revoke(ctx, tok)
	assert.True(t, apperrors.IsPolicyRejection(err), "revoked tokens no longer decode")

	logs := buf.String()
	assert.Contains(t, logs, `"event_type":"token_issued"`)
	assert.Contains(t, logs, `"event_type":"token_accepted"`)
	assert.Contains(t, logs, `"event_type":"token_revoked"`)
	assert.Contains(t, logs, `"operation":"revoke"`)
	assert.Contains(t, logs, `"event_type":"token_rejected"`)
}

func TestApp_Purge(t *testing.T) {
	a, _ := newApp(t, testConfig())
	ctx := context.Background()

	tok, err := a.Issue(ctx, token.Identity{"username": "alice"})
	require.NoError(t, err)
	_, err = a.Revoke(ctx, tok)
	require.NoError(t, err)

	n, err := a.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "unexpired entries are kept")

	_, err = a.Decode(ctx, tok)
	assert.True(t, apperrors.IsPolicyRejection(err))
}

func TestApp_RejectsForeignAudience(t *testing.T) {
	issuerCfg := testConfig()
	issuerCfg.Claims.Audience = []string{"billing"}
	issuer, _ := newApp(t, issuerCfg)

	tok, err := issuer.Issue(context.Background(), token.Identity{"username": "alice"})
	require.NoError(t, err)

	verifier, _ := newApp(t, testConfig())
	_, err = verifier.Decode(context.Background(), tok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), listener.ReasonAudienceMismatch)
}

func TestApp_DecodeGarbage(t *testing.T) {
	a, _ := newApp(t, testConfig())

	_, err := a.Decode(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.True(t, apperrors.IsDecodingFailure(err))
	assert.True(t, apperrors.IsInvalidToken(err))
}

func TestApp_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Revocation.Backend = config.BackendRedis
	cfg.Revocation.Redis.Addr = mr.Addr()
	cfg.Revocation.Redis.Prefix = "test:"

	a, _ := newApp(t, cfg)
	ctx := context.Background()

	tok, err := a.Issue(ctx, token.Identity{"username": "bob"})
	require.NoError(t, err)
	payload, err := a.Revoke(ctx, tok)
	require.NoError(t, err)

	jti, _ := payload.String(token.ClaimTokenID)
	assert.True(t, mr.Exists("test:"+jti))

	_, err = a.Decode(ctx, tok)
	assert.True(t, apperrors.IsPolicyRejection(err))
}

func TestApp_RevocationDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Revocation.Backend = config.BackendNone
	a, _ := newApp(t, cfg)

	tok, err := a.Issue(context.Background(), token.Identity{"username": "alice"})
	require.NoError(t, err)

	_, err = a.Revoke(context.Background(), tok)
	assert.True(t, apperrors.IsValidation(err))

	n, err := a.Purge(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApp_Throttle(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.Enabled = true
	cfg.Throttle.RatePerSecond = 0.001
	cfg.Throttle.Burst = 2
	a, _ := newApp(t, cfg)
	ctx := context.Background()

	alice, err := a.Issue(ctx, token.Identity{"username": "alice"})
	require.NoError(t, err)
	bob, err := a.Issue(ctx, token.Identity{"username": "bob"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := a.Decode(ctx, alice)
		require.NoError(t, err)
	}
	_, err = a.Decode(ctx, alice)
	require.Error(t, err)
	assert.True(t, apperrors.IsPolicyRejection(err))

	_, err = a.Decode(ctx, bob)
	assert.NoError(t, err, "limits are per identity")
}

func TestApp_RevokeHasNoDecodeSideEffects(t *testing.T) {
	cfg := testConfig()
	cfg.Throttle.Enabled = true
	cfg.Throttle.RatePerSecond = 0.001
	cfg.Throttle.Burst = 1
	a, buf := newApp(t, cfg)
	ctx := context.Background()

	first, err := a.Issue(ctx, token.Identity{"username": "alice"})
	require.NoError(t, err)
	second, err := a.Issue(ctx, token.Identity{"username": "alice"})
	require.NoError(t, err)

	_, err = a.Revoke(ctx, first)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), `"event_type":"token_accepted"`)

	_, err = a.Decode(ctx, second)
	assert.NoError(t, err, "revoking does not spend the identity's throttle budget")
	assert.Contains(t, buf.String(), `"event_type":"token_accepted"`)

	_, err = a.Revoke(ctx, first)
	assert.True(t, apperrors.IsPolicyRejection(err), "already revoked")
}

func TestApp_ManagerLogsCarryRequestID(t *testing.T) {
	a, buf := newApp(t, testConfig())
	ctx := log.WithRequestID(context.Background(), "req-42")

	_, err := a.Decode(ctx, "not-a-token")
	require.Error(t, err)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, `"stage":"encoder"`) {
			line = l
		}
	}
	require.NotEmpty(t, line, "manager rejection is logged")
	assert.Contains(t, line, `"request_id":"req-42"`)
}

func TestApp_JWE(t *testing.T) {
	cfg := testConfig()
	cfg.Encoder.Type = "jwe"
	cfg.Encoder.Algorithm = "dir"
	a, _ := newApp(t, cfg)

	tok, err := a.Issue(context.Background(), token.Identity{"username": "alice"})
	require.NoError(t, err)

	payload, err := a.Decode(context.Background(), tok)
	require.NoError(t, err)
	identity, _ := a.Manager.Identity(payload)
	assert.Equal(t, "alice", identity)
}

func TestApp_EmptyEncoderTypeIsJWT(t *testing.T) {
	cfg := testConfig()
	cfg.Encoder.Type = ""
	a, _ := newApp(t, cfg)

	tok, err := a.Issue(context.Background(), token.Identity{"username": "alice"})
	require.NoError(t, err)
	assert.Len(t, strings.Split(tok, "."), 3)

	_, err = a.Decode(context.Background(), tok)
	assert.NoError(t, err)
}

func TestNew_LoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&log.Config{Output: &buf, Level: slog.LevelDebug})
	ctx := log.WithContext(context.Background(), logger)

	a, err := app.New(ctx, testConfig(), nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	_, err = a.Issue(ctx, token.Identity{"username": "alice"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "token issued")
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{
			name:   "invalid configuration",
			modify: func(c *config.Config) { c.Token.TTL = 0 },
		},
		{
			name:   "short secret",
			modify: func(c *config.Config) { c.Encoder.SecretKey = "short" },
		},
		{
			name:   "missing key file",
			modify: func(c *config.Config) { c.Encoder.PrivateKeyFile = "/nonexistent/key.pem" },
		},
		{
			name: "unreachable redis",
			modify: func(c *config.Config) {
				c.Revocation.Backend = config.BackendRedis
				c.Revocation.Redis.Addr = "127.0.0.1:1"
			},
		},
		{
			name: "invalid throttle",
			modify: func(c *config.Config) {
				c.Throttle.Enabled = true
				c.Throttle.Burst = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(cfg)

			logger := log.New(&log.Config{Output: &bytes.Buffer{}})
			a, err := app.New(context.Background(), cfg, logger)
			assert.Error(t, err)
			assert.Nil(t, a)
		})
	}
}
