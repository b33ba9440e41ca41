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

// Package token manages the lifecycle of signed authentication tokens.
//
// A Manager builds a payload for a user, lets registered hooks amend it and
// hands it to an Encoder. Decoding runs the reverse path: the encoder
// verifies the token and hooks may veto the result. The Manager holds no
// cryptographic material itself.
//
// Example:
//
//	hooks := token.NewHooks()
//	hooks.OnDecoded(func(e *token.DecodedEvent) {
//		if banned(e.Payload()) {
//			e.MarkInvalid("banned")
//		}
//	})
//	mgr, err := token.NewManager(enc, hooks, time.Hour)
//	tok, err := mgr.Create(ctx, token.Identity{"username": "alice"})
//	payload, err := mgr.Decode(ctx, token.RawToken(tok))
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/telemetry"
)

const tracerName = "github.com/plindsay/jwtlifecycle/pkg/token"

var (
	errMissingCredential = errors.New("missing credential")
	errEmptyPayload      = errors.New("encoder returned an empty payload")
)

// Recorder receives the outcome of every Create and Decode call.
type Recorder interface {
	RecordCreate(ctx context.Context, duration time.Duration, err error)
	RecordDecode(ctx context.Context, duration time.Duration, err error)
}

// Manager creates and decodes tokens. It is safe for concurrent use.
type Manager struct {
	encoder    Encoder
	dispatcher Dispatcher
	ttl        time.Duration
	now        func() time.Time
	builder    PayloadBuilder
	userClaim  string
	logger     *slog.Logger
	tracing    *telemetry.TracingHelper
	recorder   Recorder

	mu            sync.RWMutex
	identityField string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used to compute exp.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPayloadBuilder replaces the default builder, which stores the user's
// identity fragment under the user claim.
func WithPayloadBuilder(builder PayloadBuilder) Option {
	return func(m *Manager) {
		m.builder = builder
	}
}

// WithUserClaim changes the claim holding the identity fragment.
func WithUserClaim(claim string) Option {
	return func(m *Manager) {
		if claim != "" {
			m.userClaim = claim
		}
	}
}

// WithIdentityField sets the initial identity field.
func WithIdentityField(field string) Option {
	return func(m *Manager) {
		m.identityField = field
	}
}

// WithLogger sets the logger used for failed operations.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTracing sets the tracing helper used to wrap operations in spans.
func WithTracing(tracing *telemetry.TracingHelper) Option {
	return func(m *Manager) {
		if tracing != nil {
			m.tracing = tracing
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

// NewManager creates a token manager. A nil dispatcher disables hooks.
// ttl is truncated to whole seconds and must be at least one second.
func NewManager(encoder Encoder, dispatcher Dispatcher, ttl time.Duration, opts ...Option) (*Manager, error) {
	if encoder == nil {
		return nil, apperrors.NewValidationError("encoder is required")
	}
	if ttl < time.Second {
		return nil, apperrors.NewValidationError(
			"ttl must be at least one second",
			fmt.Sprintf("got %s", ttl),
		)
	}
	if dispatcher == nil {
		dispatcher = NopDispatcher{}
	}

	m := &Manager{
		encoder:       encoder,
		dispatcher:    dispatcher,
		ttl:           ttl.Truncate(time.Second),
		now:           time.Now,
		userClaim:     DefaultUserClaim,
		identityField: DefaultIdentityField,
		logger:        slog.New(slog.DiscardHandler),
		tracing:       telemetry.NewTracingHelper(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.builder == nil {
		m.builder = UserClaimBuilder(m.userClaim)
	}

	return m, nil
}

// Create issues a token for user. The payload always carries exp, set to
// now plus the TTL; creation hooks may change any claim, exp included,
// before the payload is encoded.
func (m *Manager) Create(ctx context.Context, user User) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	ctx, span := m.tracing.StartTokenSpan(ctx, telemetry.SpanTokenCreate, fmt.Sprintf("%T", m.encoder))
	defer span.End()

	tok, err := m.create(ctx, user)
	if err != nil {
		telemetry.RecordError(span, err, "token creation failed")
		m.logger.ErrorContext(ctx, "token creation failed", apperrors.LoggingFields(err)...)
	}
	telemetry.RecordOutcome(span, telemetry.CreateOutcome(err))
	if m.recorder != nil {
		m.recorder.RecordCreate(ctx, time.Since(start), err)
	}

	return tok, err
}

func (m *Manager) create(ctx context.Context, user User) (string, error) {
	if user == nil {
		return "", apperrors.NewValidationError("user is required")
	}

	payload := Payload{ClaimExpiration: m.now().Unix() + int64(m.ttl/time.Second)}
	m.builder(user, payload)

	event := NewCreatedEvent(ctx, payload, user)
	m.dispatcher.Dispatch(EventCreated, event)

	tok, err := m.encoder.Encode(event.Payload())
	if err != nil {
		return "", apperrors.NewEncodingError(err)
	}
	return tok, nil
}

// Decode verifies credential and returns its payload.
//
// Decoding hooks receive a copy of the payload: the value returned here is
// exactly what the encoder produced. Both encoder failures and hook vetoes
// satisfy errors.Is(err, errors.ErrInvalidToken).
func (m *Manager) Decode(ctx context.Context, credential Credential) (Payload, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	ctx, span := m.tracing.StartTokenSpan(ctx, telemetry.SpanTokenDecode, fmt.Sprintf("%T", m.encoder))
	defer span.End()

	payload, err := m.decode(ctx, credential)
	if err != nil {
		telemetry.RecordError(span, err, "token rejected")
		stage := "hooks"
		if apperrors.IsDecodingFailure(err) {
			stage = "encoder"
		}
		m.logger.InfoContext(ctx, "token rejected", append(apperrors.LoggingFields(err), "stage", stage)...)
	}
	telemetry.RecordOutcome(span, telemetry.DecodeOutcome(err))
	if m.recorder != nil {
		m.recorder.RecordDecode(ctx, time.Since(start), err)
	}

	return payload, err
}

func (m *Manager) decode(ctx context.Context, credential Credential) (Payload, error) {
	if credential == nil {
		return nil, apperrors.NewDecodingError(errMissingCredential)
	}

	payload, err := m.encoder.Decode(credential.Credentials())
	if err != nil {
		return nil, apperrors.NewDecodingError(err)
	}
	if len(payload) == 0 {
		return nil, apperrors.NewDecodingError(errEmptyPayload)
	}

	event := NewDecodedEvent(ctx, payload.Clone())
	m.dispatcher.Dispatch(EventDecoded, event)
	if !event.IsValid() {
		return nil, apperrors.NewPolicyRejection(event.Reason())
	}

	return payload, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// UserClaim returns the claim holding the identity fragment.
func (m *Manager) UserClaim() string {
	return m.userClaim
}

// IdentityField returns the identity field name. It is metadata for
// consumers and does not affect Create or Decode.
func (m *Manager) IdentityField() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identityField
}

// SetIdentityField replaces the identity field name. Any string, empty
// included, is accepted.
func (m *Manager) SetIdentityField(field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identityField = field
}

// Identity reads the identity field from a decoded payload.
func (m *Manager) Identity(payload Payload) (string, bool) {
	return payload.Identity(m.userClaim, m.IdentityField())
}
