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

// Package cache provides the Redis-backed revocation store.
package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plindsay/jwtlifecycle/internal/log"
	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/telemetry"
)

const (
	// StoreName identifies this store in logs, errors and metrics.
	StoreName = "redis"
	// DefaultPrefix namespaces revocation keys.
	DefaultPrefix = "jwtlifecycle:revoked:"

	tracerName = "jwtlifecycle/revocation"
)

// Options configures a Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Logger   *log.Logger
	Tracing  *telemetry.TracingHelper
	Clock    func() time.Time
}

// RevocationStore keeps revoked token IDs as Redis keys that expire with
// the token, so no purging is needed.
type RevocationStore struct {
	client  redis.UniversalClient
	prefix  string
	logger  *log.Logger
	tracing *telemetry.TracingHelper
	now     func() time.Time
}

// New creates a store on an existing client.
func New(client redis.UniversalClient, opts Options) *RevocationStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(&log.Config{Output: io.Discard})
	}
	tracing := opts.Tracing
	if tracing == nil {
		tracing = telemetry.NewTracingHelper(tracerName)
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &RevocationStore{client: client, prefix: prefix, logger: logger, tracing: tracing, now: now}
}

// Dial connects to Redis at opts.Addr and verifies the connection.
func Dial(ctx context.Context, opts Options) (*RevocationStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return New(client, opts), nil
}

func (s *RevocationStore) key(tokenID string) string {
	return s.prefix + tokenID
}

// Revoke records tokenID as revoked until expiresAt. Already expired tokens
// are not stored.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ctx, span := s.tracing.StartStoreSpan(ctx, "revoke", StoreName)
	defer span.End()

	if !expiresAt.After(s.now()) {
		telemetry.AddSpanEvent(span, "skipped_expired")
		return nil
	}
	op := s.logger.StartStoreOperation(ctx, StoreName, "revoke")

	err := s.client.SetArgs(ctx, s.key(tokenID), 1, redis.SetArgs{ExpireAt: expiresAt}).Err()
	if err != nil {
		telemetry.RecordError(span, err, "revoke failed")
		op.Fail(ctx, err, "token_id", tokenID)
		return apperrors.NewStorageError(StoreName, "revoke", err)
	}

	op.Complete(ctx, "token_id", tokenID)
	return nil
}

// IsRevoked reports whether tokenID is revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, span := s.tracing.StartStoreSpan(ctx, "is_revoked", StoreName)
	defer span.End()

	n, err := s.client.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		telemetry.RecordError(span, err, "lookup failed")
		s.logger.Error(ctx, "revocation lookup failed", "store", StoreName, "token_id", tokenID, "error", err)
		return false, apperrors.NewStorageError(StoreName, "is_revoked", err)
	}
	return n > 0, nil
}

// Close closes the Redis client.
func (s *RevocationStore) Close() error {
	return s.client.Close()
}
