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

// Package errors provides custom error types and utilities for structured error handling.
//
// Token operations report failures as *AppError values. Decode failures carry
// one of two codes (DecodingFailure or PolicyRejection) and both match
// ErrInvalidToken, so callers that only care whether a token can be trusted
// can test with errors.Is while diagnostics still see the precise cause.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of application errors.
type ErrorCode string

const (
	// ValidationError represents invalid input or configuration.
	ValidationError ErrorCode = "VALIDATION_ERROR"
	// EncodingFailure represents an encoder that could not serialize or sign a payload.
	EncodingFailure ErrorCode = "ENCODING_FAILURE"
	// DecodingFailure represents a token the encoder could not parse or verify.
	DecodingFailure ErrorCode = "DECODING_FAILURE"
	// PolicyRejection represents a well-formed token vetoed by a decode hook.
	PolicyRejection ErrorCode = "POLICY_REJECTION"
	// StorageError represents a failing backing store.
	StorageError ErrorCode = "STORAGE_ERROR"
	// RateLimitError represents rate limiting errors.
	RateLimitError ErrorCode = "RATE_LIMIT_ERROR"
	// InternalError represents internal errors.
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrInvalidToken is matched by every decode failure regardless of its cause.
var ErrInvalidToken = stderrors.New("invalid token")

// AppError represents a structured application error with context.
type AppError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Cause    error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrInvalidToken and e is a decode failure.
func (e *AppError) Is(target error) bool {
	if target == ErrInvalidToken {
		return e.Code == DecodingFailure || e.Code == PolicyRejection
	}
	return false
}

// WithMetadata adds metadata to the error.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, details ...string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Code:    ValidationError,
		Message: message,
		Details: detail,
	}
}

// NewEncodingError creates an error for a payload the encoder refused.
func NewEncodingError(cause error) *AppError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &AppError{
		Code:    EncodingFailure,
		Message: "failed to encode token",
		Details: detail,
		Cause:   cause,
	}
}

// NewDecodingError creates an error for a token the encoder could not decode.
func NewDecodingError(cause error) *AppError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &AppError{
		Code:    DecodingFailure,
		Message: "invalid token",
		Details: detail,
		Cause:   cause,
	}
}

// NewPolicyRejection creates an error for a token vetoed by a decode hook.
func NewPolicyRejection(reason string) *AppError {
	err := &AppError{
		Code:    PolicyRejection,
		Message: "invalid token",
		Details: reason,
	}
	if reason != "" {
		err.WithMetadata("reason", reason)
	}
	return err
}

// NewStorageError creates an error for a failing store operation.
func NewStorageError(store, operation string, cause error) *AppError {
	return &AppError{
		Code:     StorageError,
		Message:  fmt.Sprintf("store '%s' error", store),
		Details:  fmt.Sprintf("Failed to perform '%s' operation", operation),
		Cause:    cause,
		Metadata: map[string]interface{}{
			"store":     store,
			"operation": operation,
		},
	}
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(limit float64, burst int) *AppError {
	return &AppError{
		Code:     RateLimitError,
		Message:  "Rate limit exceeded",
		Details:  fmt.Sprintf("Maximum %.2f decodes per second (burst %d) exceeded", limit, burst),
		Metadata: map[string]interface{}{
			"rate_limit": limit,
			"burst":      burst,
		},
	}
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Code:    InternalError,
		Message: message,
		Details: "An internal error occurred",
		Cause:   cause,
	}
}

// WrapError wraps an existing error with additional context.
func WrapError(err error, message string) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:     appErr.Code,
			Message:  message,
			Details:  appErr.Error(),
			Cause:    err,
			Metadata: appErr.Metadata,
		}
	}

	return &AppError{
		Code:    InternalError,
		Message: message,
		Details: err.Error(),
		Cause:   err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or an empty code.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsErrorCode checks if an error has a specific error code.
func IsErrorCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsInvalidToken checks if an error means a token must not be trusted.
func IsInvalidToken(err error) bool {
	return stderrors.Is(err, ErrInvalidToken)
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return IsErrorCode(err, ValidationError)
}

// IsPolicyRejection checks if an error is a decode hook veto.
func IsPolicyRejection(err error) bool {
	return IsErrorCode(err, PolicyRejection)
}

// IsDecodingFailure checks if an error is an encoder decode failure.
func IsDecodingFailure(err error) bool {
	return IsErrorCode(err, DecodingFailure)
}
