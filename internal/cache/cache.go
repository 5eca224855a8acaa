/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for campaign scheduling
// inputs.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/telemetry"
)

// Default TTL values for different cache types
const (
	DefaultAccountsTTL = 5 * time.Minute
	DefaultPolicyTTL   = 30 * time.Minute
)

// Key prefixes for Redis cache
const (
	keyRoot             = "bob:cache:"
	KeyCampaignAccounts = keyRoot + "campaign_accounts:" // + campaign_id
	KeyCampaignPolicy   = keyRoot + "policy:"            // + campaign_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AccountsTTL time.Duration
	PolicyTTL   time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		AccountsTTL:    DefaultAccountsTTL,
		PolicyTTL:      DefaultPolicyTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A nil *Cache is
// valid and never hits.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. An unreachable Redis yields a disabled
// cache rather than an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.AccountsTTL <= 0 {
		cfg.AccountsTTL = DefaultAccountsTTL
	}
	if cfg.PolicyTTL <= 0 {
		cfg.PolicyTTL = DefaultPolicyTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		_ = client.Close()
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c != nil && c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, kind, key string, dest any) bool {
	if !c.IsAvailable() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		telemetry.CacheRequestsTotal.WithLabelValues(kind, "miss").Inc()
		return false
	}
	if err != nil {
		c.handleError(err, "get")
		telemetry.CacheRequestsTotal.WithLabelValues(kind, "error").Inc()
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		telemetry.CacheRequestsTotal.WithLabelValues(kind, "miss").Inc()
		return false
	}

	telemetry.CacheRequestsTotal.WithLabelValues(kind, "hit").Inc()
	return true
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes keys from cache.
func (c *Cache) delete(ctx context.Context, keys ...string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// SCAN rather than KEYS so a large keyspace does not block Redis.
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Account pool caching

// GetCampaignAccounts returns the cached round robin account order for a campaign.
func (c *Cache) GetCampaignAccounts(ctx context.Context, campaignID string) ([]string, bool) {
	var ids []string
	if !c.get(ctx, "accounts", KeyCampaignAccounts+campaignID, &ids) {
		return nil, false
	}
	c.logger.Debug().Str("campaign_id", campaignID).Int("count", len(ids)).Msg("account pool cache hit")
	return ids, true
}

// SetCampaignAccounts caches a campaign's active account IDs in round robin order.
func (c *Cache) SetCampaignAccounts(ctx context.Context, campaignID string, ids []string) error {
	if !c.IsAvailable() {
		return nil
	}
	return c.set(ctx, KeyCampaignAccounts+campaignID, ids, c.config.AccountsTTL)
}

// Policy caching

// CachedPolicy is a validated policy as stored in Redis.
type CachedPolicy struct {
	Timezone         string   `json:"timezone"`
	EmailsPerDay     int      `json:"emails_per_day"`
	EmailsPerHour    int      `json:"emails_per_hour"`
	SendingInterval  int      `json:"sending_interval"`
	StartHour        int      `json:"start_hour"`
	EndHour          int      `json:"end_hour"`
	ActiveDays       []string `json:"active_days"`
	JitterEnabled    bool     `json:"jitter_enabled"`
	JitterMaxMinutes int      `json:"jitter_max_minutes"`
}

func fromPolicy(p scheduling.Policy) CachedPolicy {
	return CachedPolicy{
		Timezone:         p.Timezone,
		EmailsPerDay:     p.EmailsPerDay,
		EmailsPerHour:    p.EmailsPerHour,
		SendingInterval:  p.SendingInterval,
		StartHour:        p.Window.StartHour,
		EndHour:          p.Window.EndHour,
		ActiveDays:       p.ActiveWeekdays.Names(),
		JitterEnabled:    p.Jitter.Enabled,
		JitterMaxMinutes: p.Jitter.MaxMinutes,
	}
}

// Policy rebuilds the validated policy. Day names were written by Names and
// always parse.
func (cp CachedPolicy) Policy() scheduling.Policy {
	var days scheduling.Weekdays
	for _, name := range cp.ActiveDays {
		if d, ok := scheduling.ParseWeekday(name); ok {
			days = days.With(d)
		}
	}
	return scheduling.Policy{
		Timezone:        cp.Timezone,
		EmailsPerDay:    cp.EmailsPerDay,
		EmailsPerHour:   cp.EmailsPerHour,
		SendingInterval: cp.SendingInterval,
		Window:          scheduling.Window{StartHour: cp.StartHour, EndHour: cp.EndHour},
		ActiveWeekdays:  days,
		Jitter:          scheduling.Jitter{Enabled: cp.JitterEnabled, MaxMinutes: cp.JitterMaxMinutes},
	}
}

// GetPolicy returns a campaign's cached validated policy.
func (c *Cache) GetPolicy(ctx context.Context, campaignID string) (scheduling.Policy, bool) {
	var cp CachedPolicy
	if !c.get(ctx, "policy", KeyCampaignPolicy+campaignID, &cp) {
		return scheduling.Policy{}, false
	}
	return cp.Policy(), true
}

// SetPolicy caches a campaign's validated policy.
func (c *Cache) SetPolicy(ctx context.Context, campaignID string, policy scheduling.Policy) error {
	if !c.IsAvailable() {
		return nil
	}
	return c.set(ctx, KeyCampaignPolicy+campaignID, fromPolicy(policy), c.config.PolicyTTL)
}

// Invalidation

// InvalidateCampaign drops everything cached for one campaign.
func (c *Cache) InvalidateCampaign(ctx context.Context, campaignID string) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Debug().Str("campaign_id", campaignID).Msg("invalidating campaign caches")
	return c.delete(ctx, KeyCampaignAccounts+campaignID, KeyCampaignPolicy+campaignID)
}

// InvalidateAccountPools drops every cached account pool. An account status
// change can affect any campaign it is assigned to.
func (c *Cache) InvalidateAccountPools(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Debug().Msg("invalidating all account pool caches")
	return c.deletePattern(ctx, KeyCampaignAccounts+"*")
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, keyRoot+"*")
}

// Listen invalidates entries as campaign and account update events arrive.
// It returns when ctx is done.
func (c *Cache) Listen(ctx context.Context, bus *events.Bus) {
	campaigns := bus.Subscribe(events.EventCampaignUpdated)
	accounts := bus.Subscribe(events.EventAccountUpdated)
	defer bus.Unsubscribe(events.EventCampaignUpdated, campaigns)
	defer bus.Unsubscribe(events.EventAccountUpdated, accounts)

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-campaigns:
			if id, ok := payload["campaign_id"].(string); ok && id != "" {
				if err := c.InvalidateCampaign(ctx, id); err != nil {
					c.logger.Debug().Err(err).Str("campaign_id", id).Msg("campaign invalidation failed")
				}
			}
		case <-accounts:
			if err := c.InvalidateAccountPools(ctx); err != nil {
				c.logger.Debug().Err(err).Msg("account pool invalidation failed")
			}
		}
	}
}
