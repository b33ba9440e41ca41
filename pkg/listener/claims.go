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
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/plindsay/jwtlifecycle/pkg/token"
)

// Rejection reasons reported by ClaimsValidator.
const (
	ReasonMissingTokenID    = "missing token id"
	ReasonIssuerMismatch    = "issuer mismatch"
	ReasonAudienceMismatch  = "audience mismatch"
	ReasonRevoked           = "token revoked"
	ReasonRevocationUnknown = "revocation status unavailable"
)

// ClaimsConfig holds the registered claims added on creation and enforced on decode.
type ClaimsConfig struct {
	Issuer   string
	Audience []string
	// RequireTokenID makes the validator reject tokens without a jti.
	RequireTokenID bool
	Clock          func() time.Time
}

// ClaimsEnricher adds iat, nbf, jti and, when configured, iss and aud to
// new tokens. Claims already present are left untouched.
type ClaimsEnricher struct {
	issuer   string
	audience []string
	now      func() time.Time
	newID    func() string
}

// NewClaimsEnricher creates a ClaimsEnricher.
func NewClaimsEnricher(cfg ClaimsConfig) *ClaimsEnricher {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &ClaimsEnricher{
		issuer:   cfg.Issuer,
		audience: slices.Clone(cfg.Audience),
		now:      now,
		newID:    uuid.NewString,
	}
}

// OnCreated implements CreatedListener.
func (c *ClaimsEnricher) OnCreated(event *token.CreatedEvent) {
	payload := event.Payload()
	if payload == nil {
		payload = token.Payload{}
		event.SetPayload(payload)
	}

	now := c.now().Unix()
	setDefault(payload, token.ClaimIssuedAt, now)
	setDefault(payload, token.ClaimNotBefore, now)
	setDefault(payload, token.ClaimTokenID, c.newID())

	if c.issuer != "" {
		setDefault(payload, token.ClaimIssuer, c.issuer)
	}
	switch len(c.audience) {
	case 0:
	case 1:
		setDefault(payload, token.ClaimAudience, c.audience[0])
	default:
		setDefault(payload, token.ClaimAudience, slices.Clone(c.audience))
	}
}

func setDefault(payload token.Payload, key string, value any) {
	if _, ok := payload[key]; !ok {
		payload[key] = value
	}
}

// ClaimsValidator vetoes decoded tokens whose registered claims do not
// match the configuration.
type ClaimsValidator struct {
	issuer         string
	audience       []string
	requireTokenID bool
}

// NewClaimsValidator creates a ClaimsValidator.
func NewClaimsValidator(cfg ClaimsConfig) *ClaimsValidator {
	return &ClaimsValidator{
		issuer:         cfg.Issuer,
		audience:       slices.Clone(cfg.Audience),
		requireTokenID: cfg.RequireTokenID,
	}
}

// OnDecoded implements DecodedListener.
func (v *ClaimsValidator) OnDecoded(event *token.DecodedEvent) {
	payload := event.Payload()

	if v.requireTokenID {
		if jti, _ := payload.String(token.ClaimTokenID); jti == "" {
			event.MarkInvalid(ReasonMissingTokenID)
		}
	}

	if v.issuer != "" {
		if iss, _ := payload.String(token.ClaimIssuer); iss != v.issuer {
			event.MarkInvalid(ReasonIssuerMismatch)
		}
	}

	if len(v.audience) > 0 && !audienceMatches(payload[token.ClaimAudience], v.audience) {
		event.MarkInvalid(ReasonAudienceMismatch)
	}
}

// audienceMatches reports whether any token audience is accepted.
func audienceMatches(claim any, accepted []string) bool {
	var values []string
	switch aud := claim.(type) {
	case string:
		values = []string{aud}
	case []string:
		values = aud
	case []any:
		for _, item := range aud {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
	}

	for _, value := range values {
		if slices.Contains(accepted, value) {
			return true
		}
	}
	return false
}
