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
	"context"
	"time"

	"github.com/plindsay/jwtlifecycle/pkg/token"
)

// AuditLogger records token lifecycle events.
type AuditLogger interface {
	TokenIssued(ctx context.Context, subject, tokenID string, expiresAt time.Time)
	TokenAccepted(ctx context.Context, subject, tokenID string)
	TokenRejected(ctx context.Context, subject, tokenID, reason string)
}

// Audit reports issued tokens and decode verdicts. Register it last so it
// sees the final payload and verdict.
type Audit struct {
	logger  AuditLogger
	subject KeyFunc
}

// NewAudit creates an Audit listener. subject names the token owner in
// audit records; nil uses the user claim's username.
func NewAudit(logger AuditLogger, subject KeyFunc) *Audit {
	if subject == nil {
		subject = IdentityKey(token.DefaultUserClaim, token.DefaultIdentityField)
	}
	return &Audit{logger: logger, subject: subject}
}

// OnCreated implements CreatedListener.
func (a *Audit) OnCreated(event *token.CreatedEvent) {
	payload := event.Payload()
	subject, _ := a.subject(payload)
	jti, _ := payload.String(token.ClaimTokenID)
	exp, _ := payload.ExpiresAt()
	a.logger.TokenIssued(event.Context(), subject, jti, exp)
}

// OnDecoded implements DecodedListener.
func (a *Audit) OnDecoded(event *token.DecodedEvent) {
	payload := event.Payload()
	subject, _ := a.subject(payload)
	jti, _ := payload.String(token.ClaimTokenID)

	if event.IsValid() {
		a.logger.TokenAccepted(event.Context(), subject, jti)
		return
	}
	a.logger.TokenRejected(event.Context(), subject, jti, event.Reason())
}
