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

package listener

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/token"
)

// RevocationStore records revoked token IDs until the tokens expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// StoreObserver receives the timing of revocation store calls.
type StoreObserver interface {
	RecordStoreOperation(ctx context.Context, duration time.Duration, store, operation string, success bool)
}

// RevocationOption configures a RevocationCheck.
type RevocationOption func(*RevocationCheck)

// WithRevocationLogger sets the logger used for store failures.
func WithRevocationLogger(logger *slog.Logger) RevocationOption {
	return func(r *RevocationCheck) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStoreObserver reports store call timings to observer under name.
func WithStoreObserver(name string, observer StoreObserver) RevocationOption {
	return func(r *RevocationCheck) {
		r.storeName = name
		r.observer = observer
	}
}

// RevocationCheck vetoes decoded tokens whose jti has been revoked.
// Store errors veto the token too. Tokens without a jti are ignored; pair
// with a ClaimsValidator requiring token IDs to close that gap.
type RevocationCheck struct {
	store     RevocationStore
	logger    *slog.Logger
	storeName string
	observer  StoreObserver
}

// NewRevocationCheck creates a RevocationCheck backed by store.
func NewRevocationCheck(store RevocationStore, opts ...RevocationOption) *RevocationCheck {
	r := &RevocationCheck{
		store:     store,
		logger:    slog.New(slog.DiscardHandler),
		storeName: "revocation",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnDecoded implements DecodedListener.
func (r *RevocationCheck) OnDecoded(event *token.DecodedEvent) {
	jti, _ := event.Payload().String(token.ClaimTokenID)
	if jti == "" {
		return
	}

	ctx := event.Context()
	start := time.Now()
	revoked, err := r.store.IsRevoked(ctx, jti)
	if r.observer != nil {
		r.observer.RecordStoreOperation(ctx, time.Since(start), r.storeName, "is_revoked", err == nil)
	}

	if err != nil {
		r.logger.ErrorContext(ctx, "revocation check failed",
			"token_id", jti,
			"error", err,
		)
		event.MarkInvalid(ReasonRevocationUnknown)
		return
	}
	if revoked {
		event.MarkInvalid(ReasonRevoked)
	}
}

// Revoker revokes decoded tokens.
type Revoker struct {
	store RevocationStore
}

// NewRevoker creates a Revoker backed by store.
func NewRevoker(store RevocationStore) *Revoker {
	return &Revoker{store: store}
}

// Revoke records payload's jti as revoked until its exp.
func (r *Revoker) Revoke(ctx context.Context, payload token.Payload) error {
	jti, _ := payload.String(token.ClaimTokenID)
	if jti == "" {
		return apperrors.NewValidationError("token has no jti claim and cannot be revoked")
	}
	expiresAt, ok := payload.ExpiresAt()
	if !ok {
		return apperrors.NewValidationError("token has no exp claim and cannot be revoked")
	}

	if err := r.store.Revoke(ctx, jti, expiresAt); err != nil {
		return apperrors.WrapError(err, "failed to revoke token")
	}
	return nil
}
