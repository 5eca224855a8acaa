/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Runner is the loop a LeaderAwareScheduler starts and stops.
type Runner interface {
	Run(ctx context.Context) error
}

// Election is the part of leadership.Election the wrapper needs.
type Election interface {
	Start(ctx context.Context) error
	Stop() error
	IsLeader() bool
	LeaderCh() <-chan bool
}

// LeaderAwareScheduler wraps a scheduler and only runs when this instance is the leader
type LeaderAwareScheduler struct {
	scheduler Runner
	election  Election
	logger    zerolog.Logger

	// Internal state
	mu         sync.Mutex
	ctx        context.Context
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// NewLeaderAware creates a leader-aware scheduler wrapper
func NewLeaderAware(scheduler Runner, election Election, logger zerolog.Logger) *LeaderAwareScheduler {
	return &LeaderAwareScheduler{
		scheduler: scheduler,
		election:  election,
		logger:    logger.With().Str("component", "leader_aware_scheduler").Logger(),
	}
}

// Start begins monitoring leadership status and manages scheduler lifecycle
func (las *LeaderAwareScheduler) Start(ctx context.Context) error {
	las.ctx = ctx

	las.logger.Info().Msg("starting leader-aware scheduler")

	// Start leader election
	if err := las.election.Start(ctx); err != nil {
		return err
	}

	// Monitor leadership changes
	go las.monitorLeadership()

	return nil
}

// Stop stops the leader-aware scheduler and releases leadership
func (las *LeaderAwareScheduler) Stop() error {
	las.logger.Info().Msg("stopping leader-aware scheduler")

	las.stopScheduler()

	// Stop election
	return las.election.Stop()
}

// monitorLeadership watches for leadership changes and starts/stops scheduler accordingly
func (las *LeaderAwareScheduler) monitorLeadership() {
	leaderCh := las.election.LeaderCh()

	// Check initial leadership status
	if las.election.IsLeader() {
		las.startScheduler()
	}

	for {
		select {
		case <-las.ctx.Done():
			las.stopScheduler()
			return
		case isLeader := <-leaderCh:
			if isLeader {
				las.logger.Info().Msg("became leader, starting scheduler")
				las.startScheduler()
			} else {
				las.logger.Warn().Msg("lost leadership, stopping scheduler")
				las.stopScheduler()
			}
		}
	}
}

// startScheduler starts the scheduler in a goroutine
func (las *LeaderAwareScheduler) startScheduler() {
	las.mu.Lock()
	defer las.mu.Unlock()

	if las.done != nil {
		las.logger.Debug().Msg("scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(las.ctx)
	done := make(chan struct{})
	las.cancelFunc = cancel
	las.done = done

	go func() {
		defer close(done)
		las.logger.Info().Msg("scheduler started")
		if err := las.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			las.logger.Error().Err(err).Msg("scheduler error")
		}
		las.logger.Info().Msg("scheduler stopped")
	}()
}

// stopScheduler cancels the running scheduler and waits for it to return, so
// a demoted instance never overlaps with the new leader's sweep.
func (las *LeaderAwareScheduler) stopScheduler() {
	las.mu.Lock()
	cancel, done := las.cancelFunc, las.done
	las.cancelFunc, las.done = nil, nil
	las.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the scheduler loop is active on this instance.
func (las *LeaderAwareScheduler) Running() bool {
	las.mu.Lock()
	defer las.mu.Unlock()
	return las.done != nil
}

// IsLeader returns whether this instance is the leader
func (las *LeaderAwareScheduler) IsLeader() bool {
	return las.election.IsLeader()
}
