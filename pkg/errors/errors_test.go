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

// Package errors_test provides tests for the errors package.
package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
)

func TestNewValidationError(t *testing.T) {
	err := apperrors.NewValidationError("test message")
	assert.Equal(t, apperrors.ValidationError, err.Code)
	assert.Equal(t, "VALIDATION_ERROR: test message", err.Error())
}

func TestNewEncodingError(t *testing.T) {
	cause := errors.New("key is invalid")
	err := apperrors.NewEncodingError(cause)
	assert.Equal(t, apperrors.EncodingFailure, err.Code)
	assert.Equal(t, "ENCODING_FAILURE: failed to encode token (key is invalid)", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestDecodeFailuresMatchInvalidToken(t *testing.T) {
	decoding := apperrors.NewDecodingError(errors.New("token is malformed"))
	policy := apperrors.NewPolicyRejection("user is banned")

	assert.ErrorIs(t, decoding, apperrors.ErrInvalidToken)
	assert.ErrorIs(t, policy, apperrors.ErrInvalidToken)
	assert.True(t, apperrors.IsInvalidToken(fmt.Errorf("wrapped: %w", policy)))

	assert.True(t, apperrors.IsDecodingFailure(decoding))
	assert.False(t, apperrors.IsDecodingFailure(policy))
	assert.True(t, apperrors.IsPolicyRejection(policy))
	assert.Equal(t, "user is banned", policy.Metadata["reason"])
}

func TestNewStorageError(t *testing.T) {
	err := apperrors.NewStorageError("sqlite", "revoke", errors.New("disk full"))
	assert.Equal(t, apperrors.StorageError, err.Code)
	assert.Equal(t, "STORAGE_ERROR: store 'sqlite' error (Failed to perform 'revoke' operation)", err.Error())
	assert.Equal(t, "sqlite", err.Metadata["store"])
}

func TestNewRateLimitError(t *testing.T) {
	err := apperrors.NewRateLimitError(0.5, 3)
	assert.Equal(t, apperrors.RateLimitError, err.Code)
	assert.Contains(t, err.Error(), "0.50 decodes per second (burst 3)")
}

func TestNewInternalError(t *testing.T) {
	err := apperrors.NewInternalError("test message", errors.New("internal"))
	assert.Equal(t, apperrors.InternalError, err.Code)
	assert.Equal(t, "INTERNAL_ERROR: test message (An internal error occurred)", err.Error())
}

func TestWrapError(t *testing.T) {
	err := errors.New("original error")
	wrappedErr := apperrors.WrapError(err, "wrapped message")
	assert.Equal(t, apperrors.InternalError, wrappedErr.Code)
	assert.Equal(t, "INTERNAL_ERROR: wrapped message (original error)", wrappedErr.Error())

	rewrapped := apperrors.WrapError(apperrors.NewPolicyRejection("revoked"), "decode failed")
	assert.Equal(t, apperrors.PolicyRejection, rewrapped.Code)
	assert.ErrorIs(t, rewrapped, apperrors.ErrInvalidToken)
}

func TestIsErrorCode(t *testing.T) {
	err := apperrors.NewValidationError("test")
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ValidationError))
	assert.False(t, apperrors.IsErrorCode(err, apperrors.StorageError))
	assert.True(t, apperrors.IsValidation(fmt.Errorf("context: %w", err)))
	assert.False(t, apperrors.IsErrorCode(nil, apperrors.ValidationError))
	assert.Equal(t, apperrors.ErrorCode(""), apperrors.CodeOf(errors.New("plain")))
}
