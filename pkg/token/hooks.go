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

import "sync"

// Dispatcher delivers an event to every listener registered for name,
// synchronously and in registration order, passing the same event value.
type Dispatcher interface {
	Dispatch(name string, event Event)
}

// Listener handles dispatched events.
type Listener interface {
	Handle(event Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(event Event)

// Handle implements Listener.
func (f ListenerFunc) Handle(event Event) { f(event) }

// NopDispatcher drops every event.
type NopDispatcher struct{}

// Dispatch implements Dispatcher.
func (NopDispatcher) Dispatch(string, Event) {}

// Hooks is an ordered, in-process Dispatcher. The zero value is ready to use.
// Registration is safe while other goroutines dispatch; a dispatch already
// in progress does not see listeners added after it started.
type Hooks struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

var _ Dispatcher = (*Hooks)(nil)

// NewHooks creates an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{listeners: make(map[string][]Listener)}
}

// Subscribe appends l to the listeners of name.
func (h *Hooks) Subscribe(name string, l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listeners == nil {
		h.listeners = make(map[string][]Listener)
	}
	// Full slice expression forces a copy so running dispatches keep their snapshot.
	current := h.listeners[name]
	h.listeners[name] = append(current[:len(current):len(current)], l)
}

// OnCreated subscribes fn to EventCreated.
func (h *Hooks) OnCreated(fn func(*CreatedEvent)) {
	h.Subscribe(EventCreated, ListenerFunc(func(event Event) {
		if e, ok := event.(*CreatedEvent); ok {
			fn(e)
		}
	}))
}

// OnDecoded subscribes fn to EventDecoded.
func (h *Hooks) OnDecoded(fn func(*DecodedEvent)) {
	h.Subscribe(EventDecoded, ListenerFunc(func(event Event) {
		if e, ok := event.(*DecodedEvent); ok {
			fn(e)
		}
	}))
}

// Len returns the number of listeners registered for name.
func (h *Hooks) Len(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[name])
}

// Dispatch implements Dispatcher.
func (h *Hooks) Dispatch(name string, event Event) {
	h.mu.RLock()
	listeners := h.listeners[name]
	h.mu.RUnlock()

	for _, l := range listeners {
		l.Handle(event)
	}
}
