// Package events provides the in-process change bus that replaces implicit
// storage-change notifications.
package events

import (
	"sync"
)

// Origin tells subscribers whether a change was made by this process.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Change describes a mutation of one of the workspace collections.
type Change struct {
	// Topic is the store key that changed, e.g. "leadActivityLogs".
	Topic string `json:"topic"`
	// LeadID is set when the change concerns a single lead.
	LeadID string `json:"leadId,omitempty"`
	// Kind is a short verb such as "append", "delete" or "reload".
	Kind   string `json:"kind"`
	Origin Origin `json:"origin"`
	// Source identifies the emitting process; used to drop echoes.
	Source string `json:"source,omitempty"`
	// Payload carries an optional JSON body, e.g. the appended activity.
	Payload []byte `json:"payload,omitempty"`
}

// Handler receives published changes. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Change)

// Bus is a fan-out registry of change handlers.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	topic   string
	handler Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscription)}
}

// Subscribe registers h for changes on topic; an empty topic receives every
// change. The returned function removes the subscription.
func (b *Bus) Subscribe(topic string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{topic: topic, handler: h}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers c to every matching subscriber.
func (b *Bus) Publish(c Change) {
	if b == nil {
		return
	}
	if c.Origin == "" {
		c.Origin = OriginLocal
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.topic == "" || s.topic == c.Topic {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(c)
	}
}
