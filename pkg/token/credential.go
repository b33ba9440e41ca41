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

package token

import (
	"strings"

	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
)

// Encoder performs the cryptographic serialization of payloads.
//
// Decode must fail for malformed, tampered or (when the encoder checks it)
// expired tokens. A nil or empty payload with a nil error is treated as a
// failure as well.
type Encoder interface {
	Encode(payload Payload) (string, error)
	Decode(token string) (Payload, error)
}

// Credential carries a raw token to Decode.
type Credential interface {
	Credentials() string
}

// RawToken is a Credential holding the token string itself.
type RawToken string

// Credentials implements Credential.
func (t RawToken) Credentials() string {
	return string(t)
}

// BearerCredential extracts the token from an Authorization header value.
// It expects the format "Bearer <token>".
func BearerCredential(authHeader string) (RawToken, error) {
	if authHeader == "" {
		return "", apperrors.NewValidationError("authorization header is empty")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewValidationError("authorization header format must be 'Bearer <token>'")
	}

	return RawToken(strings.TrimSpace(parts[1])), nil
}
