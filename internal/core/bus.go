// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hearthd Contributors

package core

import (
	"log/slog"
	"sync"
)

// subscriberBuffer is the channel depth for each subscriber.
const subscriberBuffer = 256

// Bus distributes events to subscribers by event type.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]chan Event
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[EventType][]chan Event),
	}
}

// Subscribe creates a channel receiving events of the given type.
// Subscribing to MatchAll receives every type except those excluded
// from wildcard delivery (currently state_reported).
func (b *Bus) Subscribe(eventType EventType) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	b.subs[eventType] = append(b.subs[eventType], ch)
	return ch
}

// Unsubscribe removes a channel and closes it.
func (b *Bus) Unsubscribe(eventType EventType, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, sub := range subs {
		if sub == ch {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Fire delivers an event to all subscribers of its type, and to MatchAll
// subscribers unless the type is excluded from wildcard delivery. Fire
// never blocks: a subscriber whose buffer is full misses the event, with
// a warning log and a dropped counter standing in for it.
func (b *Bus) Fire(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	RecordEventFired(string(event.Type))

	b.deliver(event, b.subs[event.Type])
	if !eventsExcludedFromMatchAll[event.Type] {
		b.deliver(event, b.subs[MatchAll])
	}
}

func (b *Bus) deliver(event Event, subs []chan Event) {
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			RecordEventDropped(string(event.Type))
			slog.Warn("event dropped: subscriber buffer full",
				"event_type", event.Type,
				"context_id", event.Context.ID.String(),
			)
		}
	}
}

// ListenerCounts reports the number of subscribers per event type.
func (b *Bus) ListenerCounts() map[EventType]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := make(map[EventType]int, len(b.subs))
	for eventType, subs := range b.subs {
		if len(subs) > 0 {
			counts[eventType] = len(subs)
		}
	}
	return counts
}

// Close closes every subscriber channel. The bus must not be fired
// after Close.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, eventType)
	}
}
