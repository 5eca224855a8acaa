/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/telemetry"
)

// SubjectPrefix namespaces every event on the shared transport.
const SubjectPrefix = "bob.events."

const relayKey = events.RelayedFromKey

// transport is the wire a Bridge forwards over.
type transport interface {
	Name() string
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handle func([]byte)) (unsubscribe func() error, err error)
	Close() error
}

// Envelope is the message exchanged between nodes.
type Envelope struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalEnvelope(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(Envelope{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	return &env, nil
}

// Subject returns the transport subject for an event type.
func Subject(eventType events.EventType) string {
	return SubjectPrefix + string(eventType)
}

// Bridge connects the in-process bus to other nodes: local events go out on
// the transport and remote events are replayed into the local bus.
type Bridge struct {
	bus    *events.Bus
	wire   transport
	nodeID string
	logger zerolog.Logger
	seen   *dedup

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	unsubs  []func() error
	locals  map[events.EventType]events.Subscriber
	started bool
}

func newBridge(bus *events.Bus, wire transport, nodeID string, logger zerolog.Logger) *Bridge {
	return &Bridge{
		bus:    bus,
		wire:   wire,
		nodeID: nodeID,
		logger: logger.With().Str("component", "eventbus").Str("transport", wire.Name()).Logger(),
		seen:   newDedup(4096),
		locals: make(map[events.EventType]events.Subscriber),
	}
}

// NodeID identifies this process on the transport.
func (b *Bridge) NodeID() string { return b.nodeID }

// Start begins forwarding every type in events.AllEventTypes.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	for _, eventType := range events.AllEventTypes {
		eventType := eventType
		unsub, err := b.wire.Subscribe(ctx, Subject(eventType), func(data []byte) {
			b.relay(eventType, data)
		})
		if err != nil {
			cancel()
			b.closeLocked()
			return fmt.Errorf("subscribe %s: %w", eventType, err)
		}
		b.unsubs = append(b.unsubs, unsub)

		local := b.bus.Subscribe(eventType)
		b.locals[eventType] = local
		b.wg.Add(1)
		go b.forward(ctx, eventType, local)
	}

	b.started = true
	b.logger.Info().Str("node_id", b.nodeID).Int("event_types", len(events.AllEventTypes)).Msg("event bridge started")
	return nil
}

func (b *Bridge) forward(ctx context.Context, eventType events.EventType, local events.Subscriber) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-local:
			if !ok {
				return
			}
			if payload.Relayed() {
				continue
			}
			data, err := marshalEnvelope(eventType, payload, b.nodeID)
			if err != nil {
				b.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event")
				continue
			}
			pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err = b.wire.Publish(pubCtx, Subject(eventType), data)
			cancel()
			if err != nil {
				b.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to forward event")
				continue
			}
			telemetry.EventsForwardedTotal.WithLabelValues(b.wire.Name(), "out").Inc()
		}
	}
}

func (b *Bridge) relay(eventType events.EventType, data []byte) {
	env, err := unmarshalEnvelope(data)
	if err != nil {
		b.logger.Error().Err(err).Msg("dropping malformed event")
		return
	}
	if env.NodeID == b.nodeID || !b.seen.add(env.MessageID) {
		return
	}

	payload := make(events.Payload, len(env.Payload)+1)
	for k, v := range env.Payload {
		payload[k] = v
	}
	payload[relayKey] = env.NodeID

	b.bus.Publish(eventType, payload)
	telemetry.EventsForwardedTotal.WithLabelValues(b.wire.Name(), "in").Inc()
	b.logger.Debug().Str("event_type", string(eventType)).Str("source_node", env.NodeID).Msg("relayed remote event")
}

// Close stops forwarding and closes the transport.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()

	b.wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	b.started = false
	return b.wire.Close()
}

func (b *Bridge) closeLocked() {
	for _, unsub := range b.unsubs {
		if err := unsub(); err != nil {
			b.logger.Debug().Err(err).Msg("unsubscribe failed")
		}
	}
	b.unsubs = nil
	for eventType, sub := range b.locals {
		b.bus.Unsubscribe(eventType, sub)
	}
	b.locals = make(map[events.EventType]events.Subscriber)
}

// dedup remembers the most recent message IDs.
type dedup struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	next  int
}

func newDedup(size int) *dedup {
	return &dedup{ids: make(map[string]struct{}, size), order: make([]string, size)}
}

// add reports whether id is new.
func (d *dedup) add(id string) bool {
	if id == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.ids[id]; ok {
		return false
	}
	if old := d.order[d.next]; old != "" {
		delete(d.ids, old)
	}
	d.order[d.next] = id
	d.ids[id] = struct{}{}
	d.next = (d.next + 1) % len(d.order)
	return true
}

// NodeIDFor builds a node ID from the instance name plus a random suffix so two
// processes on one host never share an ID.
func NodeIDFor(instanceID string) string {
	return instanceID + "-" + uuid.NewString()[:8]
}
