/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

type redisTransport struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisBridge connects to Redis and returns a pub/sub bridge for bus.
func NewRedisBridge(cfg RedisConfig, bus *events.Bus, nodeID string, logger zerolog.Logger) (*Bridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("Redis event bus connected")
	return newBridge(bus, &redisTransport{client: client, logger: logger}, nodeID, logger), nil
}

func (t *redisTransport) Name() string { return "redis" }

func (t *redisTransport) Publish(ctx context.Context, subject string, data []byte) error {
	return t.client.Publish(ctx, subject, data).Err()
}

func (t *redisTransport) Subscribe(ctx context.Context, subject string, handle func([]byte)) (func() error, error) {
	pubsub := t.client.Subscribe(ctx, subject)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	go func() {
		for msg := range pubsub.Channel() {
			handle([]byte(msg.Payload))
		}
		t.logger.Debug().Str("channel", subject).Msg("Redis subscription closed")
	}()

	return pubsub.Close, nil
}

func (t *redisTransport) Close() error {
	return t.client.Close()
}
