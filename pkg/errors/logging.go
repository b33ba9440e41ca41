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

package errors

import (
	"context"
	stderrors "errors"
)

// Logger interface for logging errors. This allows for easy testing and
// different logger implementations.
type Logger interface {
	Error(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Debug(ctx context.Context, msg string, args ...any)
}

// LogError logs err under message with the fields of ec, at a level chosen
// by the error code. A nil ec is built from ctx.
func LogError(ctx context.Context, logger Logger, err error, message string, ec *ErrorContext) {
	if err == nil || logger == nil {
		return
	}
	if ec == nil {
		ec = NewErrorContext(ctx)
	}

	fields := append(LoggingFields(err), ec.Fields()...)

	switch determineLogLevel(err) {
	case "debug":
		logger.Debug(ctx, message, fields...)
	case "info":
		logger.Info(ctx, message, fields...)
	case "warn":
		logger.Warn(ctx, message, fields...)
	default:
		logger.Error(ctx, message, fields...)
	}
}

// determineLogLevel determines the appropriate log level for an error.
func determineLogLevel(err error) string {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return "error"
	}

	switch appErr.Code {
	case ValidationError, RateLimitError:
		return "warn"
	case DecodingFailure, PolicyRejection:
		// Invalid tokens are routine; a flood of them shows up in metrics.
		return "info"
	default:
		return "error"
	}
}

// LoggingFields extracts structured logging fields from an error.
func LoggingFields(err error) []any {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return []any{
			"error_type", "standard_error",
			"error_message", err.Error(),
		}
	}

	fields := []any{
		"error_type", "app_error",
		"error_code", string(appErr.Code),
		"error_message", appErr.Message,
	}
	if appErr.Details != "" {
		fields = append(fields, "error_details", appErr.Details)
	}
	for key, value := range appErr.Metadata {
		fields = append(fields, "metadata_"+key, value)
	}
	if appErr.Cause != nil {
		fields = append(fields, "underlying_cause", appErr.Cause.Error())
	}
	return fields
}
