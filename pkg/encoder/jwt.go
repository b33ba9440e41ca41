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
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/token"
)

// Supported JWS algorithms.
const (
	AlgHS256 = "HS256"
	AlgHS384 = "HS384"
	AlgHS512 = "HS512"
	AlgEdDSA = "EdDSA"
)

// MinSecretLength is the minimum HMAC secret length in bytes.
const MinSecretLength = 32

// MaxLeeway bounds the clock skew tolerated when validating time claims.
const MaxLeeway = 2 * time.Minute

var errSigningKeyMissing = errors.New("signing key not configured")

// JWTConfig configures a JWT encoder.
type JWTConfig struct {
	// Algorithm is one of HS256, HS384, HS512 or EdDSA. Defaults to HS256.
	Algorithm string
	// Secret is the HMAC key.
	Secret []byte
	// PrivateKey and PublicKey are Ed25519 keys, raw or PEM encoded.
	// A public key alone gives a verify-only encoder.
	PrivateKey []byte
	PublicKey  []byte
	// KeyID is written to the kid header and required on decode when set.
	KeyID  string
	Leeway time.Duration
	// AllowMissingExpiration accepts tokens without an exp claim.
	AllowMissingExpiration bool
}

// JWT signs payloads as compact JWS tokens.
type JWT struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	keyID     string
	parser    *jwt.Parser
}

var _ token.Encoder = (*JWT)(nil)

// NewJWT creates a JWT encoder.
func NewJWT(cfg JWTConfig) (*JWT, error) {
	if cfg.Leeway < 0 || cfg.Leeway > MaxLeeway {
		return nil, apperrors.NewValidationError(
			"invalid leeway",
			fmt.Sprintf("leeway must be between 0 and %s", MaxLeeway),
		)
	}

	j := &JWT{keyID: cfg.KeyID}

	switch cfg.Algorithm {
	case "", AlgHS256, AlgHS384, AlgHS512:
		if len(cfg.Secret) < MinSecretLength {
			return nil, apperrors.NewValidationError(
				"JWT secret key must be at least 32 bytes long",
				fmt.Sprintf("got %d bytes", len(cfg.Secret)),
			)
		}
		j.method = hmacMethod(cfg.Algorithm)
		secret := append([]byte(nil), cfg.Secret...)
		j.signKey = secret
		j.verifyKey = secret
	case AlgEdDSA:
		if err := j.loadEd25519(cfg.PrivateKey, cfg.PublicKey); err != nil {
			return nil, err
		}
		j.method = jwt.SigningMethodEdDSA
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported JWT algorithm %q", cfg.Algorithm))
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.method.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithJSONNumber(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if !cfg.AllowMissingExpiration {
		options = append(options, jwt.WithExpirationRequired())
	}
	j.parser = jwt.NewParser(options...)

	return j, nil
}

func hmacMethod(alg string) jwt.SigningMethod {
	switch alg {
	case AlgHS384:
		return jwt.SigningMethodHS384
	case AlgHS512:
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}

func (j *JWT) loadEd25519(privateKey, publicKey []byte) error {
	if len(privateKey) == 0 && len(publicKey) == 0 {
		return apperrors.NewValidationError("EdDSA requires a private or public key")
	}

	if len(privateKey) > 0 {
		priv, err := parseEdPrivateKey(privateKey)
		if err != nil {
			return apperrors.NewValidationError("invalid Ed25519 private key", err.Error())
		}
		j.signKey = priv
		j.verifyKey = priv.Public().(ed25519.PublicKey)
	}

	if len(publicKey) > 0 {
		pub, err := parseEdPublicKey(publicKey)
		if err != nil {
			return apperrors.NewValidationError("invalid Ed25519 public key", err.Error())
		}
		j.verifyKey = pub
	}

	return nil
}

// Algorithm returns the JWS algorithm name.
func (j *JWT) Algorithm() string {
	return j.method.Alg()
}

// Encode implements token.Encoder.
func (j *JWT) Encode(payload token.Payload) (string, error) {
	if j.signKey == nil {
		return "", errSigningKeyMissing
	}

	t := jwt.NewWithClaims(j.method, jwt.MapClaims(payload))
	if j.keyID != "" {
		t.Header["kid"] = j.keyID
	}

	signed, err := t.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode implements token.Encoder. Numeric claims come back as json.Number.
func (j *JWT) Decode(tokenString string) (token.Payload, error) {
	claims := jwt.MapClaims{}
	_, err := j.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if j.keyID != "" {
			if kid, _ := t.Header["kid"].(string); kid != j.keyID {
				return nil, fmt.Errorf("unexpected key id %q", kid)
			}
		}
		return j.verifyKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	return token.Payload(claims), nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	if len(key) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, err
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T", parsed)
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, err
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T", parsed)
	}
	return edKey, nil
}
