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

// Package encoder provides token.Encoder implementations: signed JWTs
// (HMAC or Ed25519) and encrypted JWEs (AES-256-GCM).
package encoder

import (
	"fmt"
	"time"

	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/token"
)

// Encoder types accepted by New.
const (
	TypeJWT = "jwt"
	TypeJWE = "jwe"
)

// Config selects and configures an encoder.
type Config struct {
	Type       string
	Algorithm  string
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
	KeyID      string
	Leeway     time.Duration
}

// New creates the encoder described by cfg. For jwe, Algorithm is the key
// management algorithm and Secret the 32-byte key.
func New(cfg Config) (token.Encoder, error) {
	switch cfg.Type {
	case "", TypeJWT:
		enc, err := NewJWT(JWTConfig{
			Algorithm:  cfg.Algorithm,
			Secret:     cfg.Secret,
			PrivateKey: cfg.PrivateKey,
			PublicKey:  cfg.PublicKey,
			KeyID:      cfg.KeyID,
			Leeway:     cfg.Leeway,
		})
		if err != nil {
			return nil, err
		}
		return enc, nil
	case TypeJWE:
		enc, err := NewJWE(JWEConfig{
			KeyAlgorithm: cfg.Algorithm,
			Key:          cfg.Secret,
			KeyID:        cfg.KeyID,
			Leeway:       cfg.Leeway,
		})
		if err != nil {
			return nil, err
		}
		return enc, nil
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported encoder type %q", cfg.Type))
	}
}
