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

// Package app assembles a token manager, its hooks and its stores from
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/plindsay/jwtlifecycle/internal/cache"
	"github.com/plindsay/jwtlifecycle/internal/config"
	"github.com/plindsay/jwtlifecycle/internal/database"
	"github.com/plindsay/jwtlifecycle/internal/log"
	"github.com/plindsay/jwtlifecycle/pkg/encoder"
	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/listener"
	"github.com/plindsay/jwtlifecycle/pkg/telemetry"
	"github.com/plindsay/jwtlifecycle/pkg/token"
)

const tracerName = "jwtlifecycle"

// store is a revocation store owning a connection.
type store interface {
	listener.RevocationStore
	Close() error
}

// App holds the wired token manager and the resources behind it.
type App struct {
	Manager *token.Manager
	Hooks   *token.Hooks

	logger    *log.Logger
	audit     *log.TokenLogger
	tracing   *telemetry.TracingHelper
	store     store
	revoker   *listener.Revoker
	providers *telemetry.Providers

	// verifier decodes tokens for revocation. It runs only the claims
	// validator and the revocation check.
	verifier    *token.Manager
	verifyHooks *token.Hooks
}

// New builds an App from cfg. Hooks run in this order: on create the claims
// enricher then the audit log; on decode the claims validator, the
// revocation check, the throttle, then the audit log.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid configuration", err.Error())
	}
	if logger == nil {
		logger = log.FromContext(ctx)
	}

	enc, err := newEncoder(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		Hooks:       token.NewHooks(),
		verifyHooks: token.NewHooks(),
		logger:      logger,
		audit:       logger.NewTokenLogger(),
		tracing:     telemetry.NewTracingHelper(tracerName),
	}

	if cfg.Telemetry.Enabled {
		a.providers, err = telemetry.Setup(ctx, telemetry.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
		})
		if err != nil {
			return nil, apperrors.NewInternalError("failed to initialize telemetry", err)
		}
		a.tracing = telemetry.NewTracingHelperWithProvider(a.providers.Tracer, tracerName)
	}

	metrics, err := telemetry.NewTokenMetrics(cfg.Telemetry.ServiceName)
	if err != nil {
		a.Close(ctx)
		return nil, apperrors.NewInternalError("failed to create token metrics", err)
	}

	storeName, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	if err := a.registerHooks(cfg, storeName, metrics); err != nil {
		a.Close(ctx)
		return nil, err
	}

	opts := []token.Option{
		token.WithUserClaim(cfg.Token.UserClaim),
		token.WithIdentityField(cfg.Token.IdentityField),
		token.WithLogger(logger.Slog()),
		token.WithTracing(a.tracing),
	}
	a.Manager, err = token.NewManager(enc, a.Hooks, cfg.TTLDuration(), append(opts, token.WithRecorder(metrics))...)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.verifier, err = token.NewManager(enc, a.verifyHooks, cfg.TTLDuration(), opts...)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	logger.Debug(ctx, "token manager ready",
		"encoder", cfg.Encoder.Type,
		"algorithm", cfg.Encoder.Algorithm,
		"revocation", storeName,
		"ttl_seconds", cfg.Token.TTL,
	)
	return a, nil
}

func newEncoder(cfg *config.Config) (token.Encoder, error) {
	ec := encoder.Config{
		Type:      cfg.Encoder.Type,
		Algorithm: cfg.Encoder.Algorithm,
		KeyID:     cfg.Encoder.KeyID,
		Leeway:    cfg.LeewayDuration(),
	}
	if cfg.Encoder.SecretKey != "" {
		ec.Secret = []byte(cfg.Encoder.SecretKey)
	}

	var err error
	if cfg.Encoder.PrivateKeyFile != "" {
		if ec.PrivateKey, err = os.ReadFile(cfg.Encoder.PrivateKeyFile); err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
	}
	if cfg.Encoder.PublicKeyFile != "" {
		if ec.PublicKey, err = os.ReadFile(cfg.Encoder.PublicKeyFile); err != nil {
			return nil, fmt.Errorf("failed to read public key: %w", err)
		}
	}

	return encoder.New(ec)
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (string, error) {
	rc := cfg.Revocation
	switch rc.Backend {
	case config.BackendSQLite:
		s, err := database.Open(rc.DSN, database.WithLogger(a.logger), database.WithTracing(a.tracing))
		if err != nil {
			return "", err
		}
		a.store = s
		return database.StoreName, nil
	case config.BackendRedis:
		s, err := cache.Dial(ctx, cache.Options{
			Addr:     rc.Redis.Addr,
			Password: rc.Redis.Password,
			DB:       rc.Redis.DB,
			Prefix:   rc.Redis.Prefix,
			Logger:   a.logger,
			Tracing:  a.tracing,
		})
		if err != nil {
			return "", err
		}
		a.store = s
		return cache.StoreName, nil
	default:
		return config.BackendNone, nil
	}
}

func (a *App) registerHooks(cfg *config.Config, storeName string, metrics *telemetry.TokenMetrics) error {
	claims := listener.ClaimsConfig{
		Issuer:         cfg.Claims.Issuer,
		Audience:       cfg.Claims.Audience,
		RequireTokenID: cfg.Claims.RequireTokenID,
	}
	subject := listener.IdentityKey(cfg.Token.UserClaim, cfg.Token.IdentityField)

	validator := listener.NewClaimsValidator(claims)
	listeners := []any{listener.NewClaimsEnricher(claims), validator}
	verify := []any{validator}

	if a.store != nil {
		a.revoker = listener.NewRevoker(a.store)
		check := listener.NewRevocationCheck(a.store,
			listener.WithRevocationLogger(a.logger.Slog()),
			listener.WithStoreObserver(storeName, metrics),
		)
		listeners = append(listeners, check)
		verify = append(verify, check)
	}

	if cfg.Throttle.Enabled {
		throttle, err := listener.NewThrottle(listener.ThrottleConfig{
			RatePerSecond: cfg.Throttle.RatePerSecond,
			Burst:         cfg.Throttle.Burst,
			MaxKeys:       cfg.Throttle.MaxKeys,
			Key:           subject,
		})
		if err != nil {
			return err
		}
		listeners = append(listeners, throttle)
	}

	listeners = append(listeners, listener.NewAudit(a.audit, subject))
	if err := listener.Register(a.Hooks, listeners...); err != nil {
		return err
	}
	return listener.Register(a.verifyHooks, verify...)
}

// Issue creates a token for user.
func (a *App) Issue(ctx context.Context, user token.User) (string, error) {
	return a.Manager.Create(ctx, user)
}

// Decode decodes raw and runs the decode hooks.
func (a *App) Decode(ctx context.Context, raw string) (token.Payload, error) {
	return a.Manager.Decode(ctx, token.RawToken(raw))
}

// Revoke decodes raw and revokes it until it expires. Only tokens that
// currently decode as valid can be revoked. The token is checked by the
// claims validator and the revocation check alone, so revoking neither
// spends throttle budget nor logs an accepted token.
func (a *App) Revoke(ctx context.Context, raw string) (token.Payload, error) {
	if a.revoker == nil {
		return nil, apperrors.NewValidationError("revocation is disabled")
	}

	ctx, span := a.tracing.StartSpan(ctx, telemetry.SpanTokenRevoke)
	defer span.End()

	op := a.logger.StartOperation(ctx, "revoke")
	payload, err := a.revoke(ctx, raw)
	if err != nil {
		telemetry.RecordError(span, err, "revoke failed")
		op.Fail(ctx, err)
		return nil, err
	}
	telemetry.RecordOutcome(span, telemetry.OutcomeSuccess)
	op.Complete(ctx)

	subject, _ := a.Manager.Identity(payload)
	jti, _ := payload.String(token.ClaimTokenID)
	exp, _ := payload.ExpiresAt()
	a.audit.TokenRevoked(ctx, subject, jti, exp)
	return payload, nil
}

func (a *App) revoke(ctx context.Context, raw string) (token.Payload, error) {
	payload, err := a.verifier.Decode(ctx, token.RawToken(raw))
	if err != nil {
		return nil, err
	}
	if err := a.revoker.Revoke(ctx, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// purger is a revocation store whose expired entries must be removed
// explicitly.
type purger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// Purge removes revocation entries for tokens that have expired. Stores that
// expire entries on their own report zero.
func (a *App) Purge(ctx context.Context) (int64, error) {
	p, ok := a.store.(purger)
	if !ok {
		return 0, nil
	}
	return p.Purge(ctx, time.Now())
}

// Close releases the revocation store and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.providers.Shutdown(ctx))
	return errors.Join(errs...)
}
