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

// Package database provides database connectivity, schema management and the
// SQLite-backed revocation store.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/glebarez/go-sqlite" // SQLite driver
	"go.opentelemetry.io/otel/attribute"

	"github.com/plindsay/jwtlifecycle/internal/log"
	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/telemetry"
)

const (
	// StoreName identifies this store in logs, errors and metrics.
	StoreName = "sqlite"

	tracerName = "jwtlifecycle/revocation"
)

// New creates a new database connection and ensures the schema is up to date.
func New(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return db, nil
}

// migrateSchema creates the necessary tables if they don't exist.
func migrateSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS revoked_tokens (
			id TEXT PRIMARY KEY,
			expires_at INTEGER NOT NULL,
			revoked_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_revoked_tokens_expires_at
			ON revoked_tokens (expires_at);
	`)
	return err
}

// RevocationStore keeps revoked token IDs in the revoked_tokens table.
// Rows past their expiry are ignored and removed by Purge.
type RevocationStore struct {
	db      *sql.DB
	logger  *log.Logger
	tracing *telemetry.TracingHelper
	now     func() time.Time
}

// StoreOption configures a RevocationStore.
type StoreOption func(*RevocationStore)

// WithLogger sets the store logger.
func WithLogger(logger *log.Logger) StoreOption {
	return func(s *RevocationStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracing sets the helper used to wrap store calls in client spans.
func WithTracing(tracing *telemetry.TracingHelper) StoreOption {
	return func(s *RevocationStore) {
		if tracing != nil {
			s.tracing = tracing
		}
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *RevocationStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRevocationStore creates a store on an already migrated database.
func NewRevocationStore(db *sql.DB, opts ...StoreOption) *RevocationStore {
	s := &RevocationStore{
		db:      db,
		logger:  log.New(&log.Config{Output: io.Discard}),
		tracing: telemetry.NewTracingHelper(tracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens dsn, migrates it and returns a store owning the connection.
func Open(dsn string, opts ...StoreOption) (*RevocationStore, error) {
	db, err := New(dsn)
	if err != nil {
		return nil, err
	}
	return NewRevocationStore(db, opts...), nil
}

// Revoke records tokenID as revoked until expiresAt. Revoking twice updates
// the expiry.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ctx, span := s.tracing.StartStoreSpan(ctx, "revoke", StoreName)
	defer span.End()
	op := s.logger.StartStoreOperation(ctx, StoreName, "revoke")

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (id, expires_at, revoked_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET expires_at = excluded.expires_at, revoked_at = excluded.revoked_at
	`, tokenID, expiresAt.Unix(), s.now().Unix())
	if err != nil {
		telemetry.RecordError(span, err, "revoke failed")
		op.Fail(ctx, err, "token_id", tokenID)
		return apperrors.NewStorageError(StoreName, "revoke", err)
	}

	op.Complete(ctx, "token_id", tokenID)
	return nil
}

// IsRevoked reports whether tokenID is revoked and not yet expired.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, span := s.tracing.StartStoreSpan(ctx, "is_revoked", StoreName)
	defer span.End()

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM revoked_tokens WHERE id = ? AND expires_at > ?`,
		tokenID, s.now().Unix(),
	).Scan(&one)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		telemetry.RecordError(span, err, "lookup failed")
		s.logger.Error(ctx, "revocation lookup failed", "store", StoreName, "token_id", tokenID, "error", err)
		return false, apperrors.NewStorageError(StoreName, "is_revoked", err)
	default:
		return true, nil
	}
}

// Purge deletes entries that expired at or before now and returns how many
// were removed.
func (s *RevocationStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := s.tracing.StartStoreSpan(ctx, "purge", StoreName)
	defer span.End()
	op := s.logger.StartStoreOperation(ctx, StoreName, "purge")

	res, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		telemetry.RecordError(span, err, "purge failed")
		op.Fail(ctx, err)
		return 0, apperrors.NewStorageError(StoreName, "purge", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		telemetry.RecordError(span, err, "purge failed")
		op.Fail(ctx, err)
		return 0, apperrors.NewStorageError(StoreName, "purge", err)
	}

	telemetry.AddSpanEvent(span, "purged", attribute.Int64("count", n))
	op.Complete(ctx, "purged", n)
	return n, nil
}

// Close closes the underlying database.
func (s *RevocationStore) Close() error {
	return s.db.Close()
}
