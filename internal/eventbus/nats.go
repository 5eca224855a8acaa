/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "bobinbox",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

type natsTransport struct {
	conn *nats.Conn
}

// NewNATSBridge connects to NATS and returns a bridge for bus.
func NewNATSBridge(cfg NATSConfig, bus *events.Bus, nodeID string, logger zerolog.Logger) (*Bridge, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info().Str("url", cfg.URL).Msg("NATS event bus connected")
	return newBridge(bus, &natsTransport{conn: conn}, nodeID, logger), nil
}

func (t *natsTransport) Name() string { return "nats" }

func (t *natsTransport) Publish(_ context.Context, subject string, data []byte) error {
	return t.conn.Publish(subject, data)
}

func (t *natsTransport) Subscribe(_ context.Context, subject string, handle func([]byte)) (func() error, error) {
	sub, err := t.conn.Subscribe(subject, func(msg *nats.Msg) {
		handle(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

func (t *natsTransport) Close() error {
	if t.conn.IsClosed() {
		return nil
	}
	return t.conn.Drain()
}
