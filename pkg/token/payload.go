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
	"encoding/json"
	"math"
	"time"
)

// Registered claim names used by the manager and the bundled listeners.
const (
	ClaimExpiration = "exp"
	ClaimIssuedAt   = "iat"
	ClaimNotBefore  = "nbf"
	ClaimTokenID    = "jti"
	ClaimIssuer     = "iss"
	ClaimAudience   = "aud"
	ClaimSubject    = "sub"
)

const (
	// DefaultUserClaim is the claim holding the user's identity fragment.
	DefaultUserClaim = "user"
	// DefaultIdentityField is the field of the identity fragment naming the user.
	DefaultIdentityField = "username"
)

// Payload is the set of claims embedded in a token.
// Values must be JSON-serializable.
type Payload map[string]any

// Clone returns a deep copy of p. Nested maps and slices are copied; other
// values are shared.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Payload:
		return val.Clone()
	case map[string]any:
		return map[string]any(Payload(val).Clone())
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// Int64 returns the claim as an integer. It accepts the numeric shapes a
// payload can hold before and after a JSON round trip.
func (p Payload) Int64(key string) (int64, bool) {
	switch v := p[key].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// String returns the claim as a string.
func (p Payload) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// ExpiresAt returns the exp claim as a time.
func (p Payload) ExpiresAt() (time.Time, bool) {
	n, ok := p.Int64(ClaimExpiration)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(n, 0), true
}

// Identity returns payload[userClaim][field] when it is a string.
func (p Payload) Identity(userClaim, field string) (string, bool) {
	var fragment map[string]any
	switch v := p[userClaim].(type) {
	case map[string]any:
		fragment = v
	case Payload:
		fragment = v
	default:
		return "", false
	}
	s, ok := fragment[field].(string)
	return s, ok
}

// User is an authenticated principal a token can be issued for.
type User interface {
	// IdentityPayload returns the serializable identity fragment embedded in tokens.
	IdentityPayload() map[string]any
}

// Identity is a User whose identity fragment is the map itself.
type Identity map[string]any

// IdentityPayload implements User.
func (i Identity) IdentityPayload() map[string]any {
	return i
}

// PayloadBuilder merges a user's identity into a freshly built payload.
// It runs after exp is set and before creation hooks are dispatched.
type PayloadBuilder func(user User, payload Payload)

// UserClaimBuilder returns a builder storing a copy of the user's identity
// fragment under claim.
func UserClaimBuilder(claim string) PayloadBuilder {
	return func(user User, payload Payload) {
		fragment := Payload(user.IdentityPayload()).Clone()
		if fragment == nil {
			fragment = Payload{}
		}
		payload[claim] = map[string]any(fragment)
	}
}
