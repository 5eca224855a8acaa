/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	// Scheduling outcomes
	EventScheduleRequested EventType = "schedule.requested"
	EventCampaignScheduled EventType = "campaign.scheduled"
	EventScheduleFailed    EventType = "schedule.failed"
	EventExportPublished   EventType = "export.published"

	// Cache invalidation events
	EventCampaignUpdated EventType = "campaign.updated"
	EventAccountUpdated  EventType = "account.updated"
)

// AllEventTypes lists every type the distributed bridges forward.
var AllEventTypes = []EventType{
	EventScheduleRequested,
	EventCampaignScheduled,
	EventScheduleFailed,
	EventExportPublished,
	EventCampaignUpdated,
	EventAccountUpdated,
}

// RelayedFromKey is set on payloads a distributed bridge delivered from another
// node. Its value is the source node ID.
const RelayedFromKey = "_relayed_from"

// Payload generic event payload.
type Payload map[string]any

// Relayed reports whether the payload came from another node.
func (p Payload) Relayed() bool {
	_, ok := p[RelayedFromKey]
	return ok
}

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type. Slow subscribers miss
// events rather than blocking publishers.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 32)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}
