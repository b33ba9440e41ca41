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
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/token"
)

// DefaultThrottleKeys bounds the number of tracked identities. When the
// table is full the least recently seen identity loses its bucket.
const DefaultThrottleKeys = 10000

// KeyFunc extracts the throttling key from a payload.
type KeyFunc func(payload token.Payload) (string, bool)

// IdentityKey throttles by payload[userClaim][field].
func IdentityKey(userClaim, field string) KeyFunc {
	return func(payload token.Payload) (string, bool) {
		return payload.Identity(userClaim, field)
	}
}

// ThrottleConfig configures a Throttle.
type ThrottleConfig struct {
	// RatePerSecond is the sustained number of decodes allowed per key.
	RatePerSecond float64
	Burst         int

	// MaxKeys caps the tracked identities; zero means DefaultThrottleKeys.
	MaxKeys int
	Key     KeyFunc
	Clock   func() time.Time
}

// Throttle vetoes decodes beyond a per-identity token bucket. Tokens already
// vetoed by an earlier listener do not consume the bucket.
type Throttle struct {
	limit rate.Limit
	burst int
	key   KeyFunc
	now   func() time.Time

	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewThrottle creates a Throttle. Key defaults to the user claim's username.
func NewThrottle(cfg ThrottleConfig) (*Throttle, error) {
	if cfg.RatePerSecond <= 0 || cfg.Burst <= 0 {
		return nil, apperrors.NewValidationError("throttle rate and burst must be positive")
	}
	maxKeys := cfg.MaxKeys
	if maxKeys == 0 {
		maxKeys = DefaultThrottleKeys
	}
	limiters, err := lru.New[string, *rate.Limiter](maxKeys)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid throttle key limit", err.Error())
	}
	key := cfg.Key
	if key == nil {
		key = IdentityKey(token.DefaultUserClaim, token.DefaultIdentityField)
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Throttle{
		limit:    rate.Limit(cfg.RatePerSecond),
		burst:    cfg.Burst,
		key:      key,
		now:      now,
		limiters: limiters,
	}, nil
}

// OnDecoded implements DecodedListener.
func (t *Throttle) OnDecoded(event *token.DecodedEvent) {
	if !event.IsValid() {
		return
	}
	key, ok := t.key(event.Payload())
	if !ok {
		return
	}

	if !t.limiter(key).AllowN(t.now(), 1) {
		event.MarkInvalid(apperrors.NewRateLimitError(float64(t.limit), t.burst).Details)
	}
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if l, ok := t.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(t.limit, t.burst)
	t.limiters.Add(key, l)
	return l
}
