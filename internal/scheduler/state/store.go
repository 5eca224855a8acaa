/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package state keeps the scheduler's in-memory run history.
package state

import (
	"sync"
	"time"
)

// RecentRun describes one finished scheduling run.
type RecentRun struct {
	CampaignID string    `json:"campaign_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Scheduled  int       `json:"scheduled"`
	Outcome    string    `json:"outcome"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Store keeps recent runs and the campaigns currently being scheduled by
// this process.
type Store struct {
	mu       sync.RWMutex
	recent   []RecentRun
	inFlight map[string]time.Time
}

// NewStore creates a scheduler state store.
func NewStore() *Store {
	return &Store{
		recent:   make([]RecentRun, 0, 128),
		inFlight: make(map[string]time.Time),
	}
}

// Begin marks a campaign as in flight. It returns false when this process is
// already scheduling it.
func (s *Store) Begin(campaignID string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[campaignID]; busy {
		return false
	}
	s.inFlight[campaignID] = at
	return true
}

// Finish clears the in-flight mark and records the run.
func (s *Store) Finish(run RecentRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, run.CampaignID)
	s.recent = append(s.recent, run)
}

// InFlight returns the IDs of campaigns being scheduled right now.
func (s *Store) InFlight() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.inFlight))
	for id := range s.inFlight {
		out = append(out, id)
	}
	return out
}

// Recent returns snapshot of finished runs, oldest first.
func (s *Store) Recent() []RecentRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RecentRun, len(s.recent))
	copy(out, s.recent)
	return out
}

// Prune removes runs that finished before cutoff.
func (s *Store) Prune(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := s.recent[:0]
	for _, run := range s.recent {
		if run.FinishedAt.After(cutoff) {
			filtered = append(filtered, run)
		}
	}
	s.recent = filtered
}
