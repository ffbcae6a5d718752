package events

import (
	"strings"
	"sync"
	"time"
)

// Event is one lifecycle signal emitted by the negotiation core.
type Event struct {
	Topic      string
	SessionID  string
	Payload    map[string]any
	OccurredAt time.Time
}

// Handler reacts to an emitted event. Handlers run synchronously in emit
// order; they must not block.
type Handler func(Event)

// Bus is an in-memory broadcast channel for lifecycle signals. It replaces
// ad hoc document-level event broadcasts with an explicit subscription other
// collaborators can rely on deterministically.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, h Handler) {
	if b == nil || h == nil {
		return
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], h)
}

// Emit fans the event out to every subscriber of its topic. A nil bus or an
// unknown topic is a no-op so emitters need no guard.
func (b *Bus) Emit(topic, sessionID string, payload map[string]any) {
	if b == nil {
		return
	}
	ev := Event{
		Topic:      topic,
		SessionID:  sessionID,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
	b.mu.RLock()
	handlers := b.subs[topic]
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}
