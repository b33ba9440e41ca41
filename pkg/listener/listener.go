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

// Package listener provides ready-made token hooks: registered claims,
// claim validation, revocation, throttling and audit logging.
//
// Listeners are plain values; Register subscribes each one to the events it
// handles, in the order given:
//
//	hooks := token.NewHooks()
//	err := listener.Register(hooks,
//		listener.NewClaimsEnricher(claims),
//		listener.NewClaimsValidator(claims),
//		listener.NewRevocationCheck(store),
//	)
package listener

import (
	"fmt"

	apperrors "github.com/plindsay/jwtlifecycle/pkg/errors"
	"github.com/plindsay/jwtlifecycle/pkg/token"
)

// CreatedListener handles token.created events.
type CreatedListener interface {
	OnCreated(event *token.CreatedEvent)
}

// DecodedListener handles token.decoded events.
type DecodedListener interface {
	OnDecoded(event *token.DecodedEvent)
}

// Register subscribes each listener to every event it implements. A value
// implementing neither interface is an error and nothing is registered.
func Register(hooks *token.Hooks, listeners ...any) error {
	for i, l := range listeners {
		_, created := l.(CreatedListener)
		_, decoded := l.(DecodedListener)
		if !created && !decoded {
			return apperrors.NewValidationError(
				"listener handles no token events",
				fmt.Sprintf("argument %d has type %T", i, l),
			)
		}
	}

	for _, l := range listeners {
		if c, ok := l.(CreatedListener); ok {
			hooks.OnCreated(c.OnCreated)
		}
		if d, ok := l.(DecodedListener); ok {
			hooks.OnDecoded(d.OnDecoded)
		}
	}
	return nil
}
