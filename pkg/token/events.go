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

import "context"

// Event names dispatched by the Manager.
const (
	EventCreated = "token.created"
	EventDecoded = "token.decoded"
)

// Event is the value passed to listeners.
type Event interface {
	// Context returns the context of the operation that raised the event.
	Context() context.Context
}

// CreatedEvent is dispatched after a payload is built and before it is encoded.
// Listeners may change the payload; the encoder receives whatever Payload
// returns once dispatch completes.
type CreatedEvent struct {
	ctx     context.Context
	payload Payload
	user    User
}

// NewCreatedEvent creates a creation event. Custom dispatchers and tests use
// it; the Manager builds its own.
func NewCreatedEvent(ctx context.Context, payload Payload, user User) *CreatedEvent {
	return &CreatedEvent{ctx: ctx, payload: payload, user: user}
}

// Context implements Event.
func (e *CreatedEvent) Context() context.Context { return e.ctx }

// Request returns the originating request, or nil.
func (e *CreatedEvent) Request() *RequestInfo { return RequestFromContext(e.ctx) }

// Payload returns the payload that will be encoded.
func (e *CreatedEvent) Payload() Payload { return e.payload }

// SetPayload replaces the payload that will be encoded.
func (e *CreatedEvent) SetPayload(payload Payload) { e.payload = payload }

// User returns the user the token is issued for.
func (e *CreatedEvent) User() User { return e.user }

// DecodedEvent is dispatched after the encoder accepted a token.
// Any listener may veto the token with MarkInvalid; the veto cannot be undone.
type DecodedEvent struct {
	ctx     context.Context
	payload Payload
	invalid bool
	reason  string
}

// NewDecodedEvent creates a decode event.
func NewDecodedEvent(ctx context.Context, payload Payload) *DecodedEvent {
	return &DecodedEvent{ctx: ctx, payload: payload}
}

// Context implements Event.
func (e *DecodedEvent) Context() context.Context { return e.ctx }

// Request returns the originating request, or nil.
func (e *DecodedEvent) Request() *RequestInfo { return RequestFromContext(e.ctx) }

// Payload returns the decoded payload. It is a copy: changes are visible to
// later listeners but not to the caller of Decode.
func (e *DecodedEvent) Payload() Payload { return e.payload }

// SetPayload replaces the payload seen by later listeners.
func (e *DecodedEvent) SetPayload(payload Payload) { e.payload = payload }

// MarkInvalid vetoes the token. The first non-empty reason is kept.
func (e *DecodedEvent) MarkInvalid(reason ...string) {
	e.invalid = true
	if e.reason == "" && len(reason) > 0 {
		e.reason = reason[0]
	}
}

// IsValid reports whether no listener has vetoed the token.
func (e *DecodedEvent) IsValid() bool { return !e.invalid }

// Reason returns the reason given with the first veto, if any.
func (e *DecodedEvent) Reason() string { return e.reason }
