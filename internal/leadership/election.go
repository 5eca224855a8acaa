/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package leadership elects one instance to run the campaign scheduler sweep.
package leadership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/telemetry"
)

const (
	defaultElectionKey     = "bob:leader:scheduler"
	defaultLeaseDuration   = 15 * time.Second
	defaultRenewalInterval = 5 * time.Second
	defaultRetryInterval   = 2 * time.Second
)

// renewScript extends the lease only while we still own it.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the lease only while we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// ElectionConfig configures the Redis lease.
type ElectionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ElectionKey holds the current leader's instance ID.
	ElectionKey string
	// LeaseDuration is how long a lease lives without renewal.
	LeaseDuration time.Duration
	// RenewalInterval is how often the leader extends its lease. It must be
	// well under LeaseDuration.
	RenewalInterval time.Duration
	// RetryInterval is how often followers try to take the lease.
	RetryInterval time.Duration
	// InstanceID identifies this process in the lease.
	InstanceID string
}

// DefaultConfig returns default election configuration
func DefaultConfig() ElectionConfig {
	return ElectionConfig{
		RedisAddr:       "localhost:6379",
		ElectionKey:     defaultElectionKey,
		LeaseDuration:   defaultLeaseDuration,
		RenewalInterval: defaultRenewalInterval,
		RetryInterval:   defaultRetryInterval,
		InstanceID:      uuid.New().String(),
	}
}

func (c ElectionConfig) withDefaults() ElectionConfig {
	if c.ElectionKey == "" {
		c.ElectionKey = defaultElectionKey
	}
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = defaultLeaseDuration
	}
	if c.RenewalInterval <= 0 || c.RenewalInterval >= c.LeaseDuration {
		c.RenewalInterval = c.LeaseDuration / 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.InstanceID == "" {
		c.InstanceID = uuid.New().String()
	}
	return c
}

// Election holds or waits for the scheduler lease.
type Election struct {
	client *redis.Client
	logger zerolog.Logger
	config ElectionConfig

	isLeader   atomic.Bool
	instanceID string
	cancelFunc context.CancelFunc
	stopOnce   sync.Once
	stopCh     chan struct{}
	leaderCh   chan bool
}

// NewElection connects to Redis and returns an idle election; call Start to
// begin campaigning.
func NewElection(config ElectionConfig, logger zerolog.Logger) (*Election, error) {
	config = config.withDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().
		Str("redis_addr", config.RedisAddr).
		Str("instance_id", config.InstanceID).
		Msg("connected to Redis for leader election")

	return &Election{
		client:     client,
		logger:     logger.With().Str("component", "leader_election").Logger(),
		config:     config,
		instanceID: config.InstanceID,
		stopCh:     make(chan struct{}),
		leaderCh:   make(chan bool, 1),
	}, nil
}

// Start begins campaigning in the background.
func (e *Election) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info().
		Str("instance_id", e.instanceID).
		Dur("lease_duration", e.config.LeaseDuration).
		Msg("starting leader election")

	go e.campaignLoop(ctx)
	return nil
}

// Stop ends campaigning, releases a held lease and closes the Redis client.
// Only the first call has any effect.
func (e *Election) Stop() error {
	first := false
	e.stopOnce.Do(func() {
		first = true
		close(e.stopCh)
	})
	if !first {
		return nil
	}

	e.logger.Info().Msg("stopping leader election")
	if e.cancelFunc != nil {
		e.cancelFunc()
	}

	if e.isLeader.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, e.client, []string{e.config.ElectionKey}, e.instanceID).Err(); err != nil {
			e.logger.Error().Err(err).Msg("failed to release leadership lock")
		} else {
			e.logger.Info().Msg("released leadership lock")
		}
		e.updateLeadershipStatus(false)
	}

	return e.client.Close()
}

// IsLeader returns whether this instance is currently the leader
func (e *Election) IsLeader() bool {
	return e.isLeader.Load()
}

// InstanceID returns the identity this instance campaigns under.
func (e *Election) InstanceID() string {
	return e.instanceID
}

// LeaderCh delivers leadership transitions. Sends never block, so a slow
// reader sees only the latest transitions.
func (e *Election) LeaderCh() <-chan bool {
	return e.leaderCh
}

// GetLeader returns the current lease holder, or "" when there is none.
func (e *Election) GetLeader(ctx context.Context) (string, error) {
	leaderID, err := e.client.Get(ctx, e.config.ElectionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get leader: %w", err)
	}
	return leaderID, nil
}

// campaignLoop renews at RenewalInterval while leading and retries at
// RetryInterval while following.
func (e *Election) campaignLoop(ctx context.Context) {
	for {
		e.attempt(ctx)

		wait := e.config.RetryInterval
		if e.isLeader.Load() {
			wait = e.config.RenewalInterval
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-e.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (e *Election) attempt(ctx context.Context) {
	held, err := e.acquireOrRenew(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Without Redis we cannot prove the lease is ours.
		e.logger.Error().Err(err).Msg("leader election round failed")
		e.updateLeadershipStatus(false)
		return
	}
	e.updateLeadershipStatus(held)
}

// acquireOrRenew takes a free lease or extends one we already hold.
func (e *Election) acquireOrRenew(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.config.ElectionKey, e.instanceID, e.config.LeaseDuration).Result()
	if err != nil {
		return false, fmt.Errorf("set lock: %w", err)
	}
	if ok {
		return true, nil
	}

	renewed, err := renewScript.Run(ctx, e.client, []string{e.config.ElectionKey},
		e.instanceID, e.config.LeaseDuration.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}
	return renewed == 1, nil
}

// updateLeadershipStatus records a transition and notifies listeners. Setting
// the current state again is a no-op.
func (e *Election) updateLeadershipStatus(isLeader bool) {
	if e.isLeader.Swap(isLeader) == isLeader {
		return
	}

	if isLeader {
		e.logger.Info().Str("instance_id", e.instanceID).Msg("acquired leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(e.instanceID).Set(1)
		telemetry.LeaderElectionChanges.WithLabelValues("acquired").Inc()
	} else {
		e.logger.Warn().Str("instance_id", e.instanceID).Msg("lost leadership")
		telemetry.LeaderElectionStatus.WithLabelValues(e.instanceID).Set(0)
		telemetry.LeaderElectionChanges.WithLabelValues("lost").Inc()
	}

	select {
	case e.leaderCh <- isLeader:
	default:
	}
}
