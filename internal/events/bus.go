// Package events is a typed publish/subscribe bus for cross-cutting SDK
// signals (authorization failures, account changes, capability flips).
// Handlers run synchronously on the publisher's goroutine, in no
// particular order between subscribers.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Topic names one class of broadcast signal.
type Topic string

const (
	// TopicAuthorizationError fires when credentials were cleared after an
	// unrecoverable auth failure. Payload: error.
	TopicAuthorizationError Topic = "authorization_error"
	// TopicAppAccountsChanged fires when the host app replaces its wallet
	// accounts. Payload: []models.AppAccount.
	TopicAppAccountsChanged Topic = "app_accounts_changed"
	// TopicCapabilityChanged fires when the global "can spend" flag flips.
	// Payload: bool.
	TopicCapabilityChanged Topic = "capability_changed"
)

// Handler receives a published payload.
type Handler func(payload any)

// Bus routes published payloads to subscribed handlers.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic]map[string]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic]map[string]Handler)}
}

// Subscribe registers a handler and returns the id used to remove it.
func (b *Bus) Subscribe(topic Topic, h Handler) string {
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[string]Handler)
	}
	b.subs[topic][id] = h
	return id
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(topic Topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[topic], id)
}

// Publish delivers the payload to every current subscriber of the topic.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}
