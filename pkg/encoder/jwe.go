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

package encoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"

	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/token"
)

// Supported JWE key management algorithms.
const (
	KeyAlgDirect = "dir"
	KeyAlgA256KW = "A256KW"
)

// JWEKeyLength is the required key length in bytes.
const JWEKeyLength = 32

var errMissingExp = errors.New("token is missing required claim: exp")

// JWEConfig configures a JWE encoder.
type JWEConfig struct {
	// KeyAlgorithm is "dir" (default) or "A256KW".
	KeyAlgorithm string
	// Key is the 32-byte content key for dir or key-wrapping key for A256KW.
	Key    []byte
	KeyID  string
	Leeway time.Duration
	// AllowMissingExpiration accepts tokens without an exp claim.
	AllowMissingExpiration bool
	// Clock overrides time.Now when checking exp and nbf.
	Clock func() time.Time
}

// JWE encrypts payloads as compact JWE tokens using A256GCM.
type JWE struct {
	encrypter  jose.Encrypter
	keyAlg     jose.KeyAlgorithm
	key        []byte
	leeway     time.Duration
	requireExp bool
	now        func() time.Time
}

var _ token.Encoder = (*JWE)(nil)

// NewJWE creates a JWE encoder.
func NewJWE(cfg JWEConfig) (*JWE, error) {
	if len(cfg.Key) != JWEKeyLength {
		return nil, apperrors.NewValidationError(
			"JWE key must be exactly 32 bytes long",
			fmt.Sprintf("got %d bytes", len(cfg.Key)),
		)
	}
	if cfg.Leeway < 0 || cfg.Leeway > MaxLeeway {
		return nil, apperrors.NewValidationError(
			"invalid leeway",
			fmt.Sprintf("leeway must be between 0 and %s", MaxLeeway),
		)
	}

	var keyAlg jose.KeyAlgorithm
	switch cfg.KeyAlgorithm {
	case "", KeyAlgDirect:
		keyAlg = jose.DIRECT
	case KeyAlgA256KW:
		keyAlg = jose.A256KW
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported JWE key algorithm %q", cfg.KeyAlgorithm))
	}

	key := append([]byte(nil), cfg.Key...)
	opts := &jose.EncrypterOptions{
		Compression:  jose.NONE,
		ExtraHeaders: map[jose.HeaderKey]interface{}{"typ": "JWT"},
	}
	encrypter, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{
		Algorithm: keyAlg,
		Key:       key,
		KeyID:     cfg.KeyID,
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypter: %w", err)
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &JWE{
		encrypter:  encrypter,
		keyAlg:     keyAlg,
		key:        key,
		leeway:     cfg.Leeway,
		requireExp: !cfg.AllowMissingExpiration,
		now:        now,
	}, nil
}

// Encode implements token.Encoder.
func (e *JWE) Encode(payload token.Payload) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	obj, err := e.encrypter.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}

	serialized, err := obj.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize JWE: %w", err)
	}
	return serialized, nil
}

// Decode implements token.Encoder. Numeric claims come back as json.Number.
func (e *JWE) Decode(tokenString string) (token.Payload, error) {
	obj, err := jose.ParseEncrypted(tokenString,
		[]jose.KeyAlgorithm{e.keyAlg},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWE: %w", err)
	}

	plaintext, err := obj.Decrypt(e.key)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.UseNumber()
	var payload token.Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := e.validateTimes(plaintext); err != nil {
		return nil, err
	}
	return payload, nil
}

// validateTimes checks exp, nbf and iat against the clock with the
// configured leeway. A token is valid through its exp second.
func (e *JWE) validateTimes(plaintext []byte) error {
	var claims josejwt.Claims
	if err := json.Unmarshal(plaintext, &claims); err != nil {
		return fmt.Errorf("failed to read registered claims: %w", err)
	}
	if claims.Expiry == nil && e.requireExp {
		return errMissingExp
	}
	if err := claims.ValidateWithLeeway(josejwt.Expected{Time: e.now()}, e.leeway); err != nil {
		return fmt.Errorf("invalid token claims: %w", err)
	}
	return nil
}
