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

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// requestKey is the context key for the originating request.
const requestKey = contextKey("request")

// RequestInfo describes the request a token operation runs on behalf of.
// The manager forwards it to hooks untouched.
type RequestInfo struct {
	ID         string
	RemoteAddr string
	UserAgent  string
	Attributes map[string]string
}

// WithRequest returns a new context carrying req.
func WithRequest(ctx context.Context, req *RequestInfo) context.Context {
	return context.WithValue(ctx, requestKey, req)
}

// RequestFromContext returns the request stored by WithRequest, or nil.
func RequestFromContext(ctx context.Context) *RequestInfo {
	if ctx == nil {
		return nil
	}
	req, _ := ctx.Value(requestKey).(*RequestInfo)
	return req
}
