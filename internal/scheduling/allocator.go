/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Lead is the part of a lead the allocator needs. Only Email is read; it seeds
// the jitter.
type Lead struct {
	ID     string            `json:"id" yaml:"id"`
	Email  string            `json:"email" yaml:"email"`
	Fields map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Record is one lead's placement.
type Record struct {
	Index     int       `json:"index"`
	Lead      Lead      `json:"lead"`
	AccountID string    `json:"account_id"`
	SendAt    time.Time `json:"send_at"`
}

// Allocator assigns send times and accounts to leads under a policy.
type Allocator struct {
	policy Policy
	nav    *Navigator
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithClock replaces time.Now as the default start time.
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) { a.now = now }
}

// WithLogger sets the logger used for rollover debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Allocator) { a.logger = logger }
}

// NewAllocator creates an allocator for a validated policy.
func NewAllocator(policy Policy, opts ...Option) *Allocator {
	a := &Allocator{
		policy: policy,
		nav:    NewNavigator(policy),
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With().Str("component", "allocator").Logger()
	return a
}

// Policy returns the policy the allocator schedules under.
func (a *Allocator) Policy() Policy { return a.policy }

// Navigator returns the allocator's window navigator.
func (a *Allocator) Navigator() *Navigator { return a.nav }

// ScheduleEmails places every lead in order. On error nothing is returned: a
// run that failed part way cannot be trusted to have placed earlier leads
// consistently with the ones it never reached.
func (a *Allocator) ScheduleEmails(leads []Lead, accountIDs []string, start *time.Time) ([]Record, error) {
	run, err := a.Begin(accountIDs, start)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(leads))
	for _, lead := range leads {
		rec, err := run.Place(lead)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Begin starts a run at start (now when nil), moved forward into the first
// sendable window. Leads are then fed one at a time through Place, which lets
// callers stream pages of leads without holding them all.
func (a *Allocator) Begin(accountIDs []string, start *time.Time) (*Run, error) {
	if len(accountIDs) == 0 {
		return nil, errors.WithHint(
			errors.Wrap(ErrInvalidAccountPool, "no sending accounts"),
			"assign at least one active email account to the campaign")
	}

	seed := a.now()
	if start != nil {
		seed = *start
	}
	first, err := a.nav.NextValidWindow(seed)
	if err != nil {
		return nil, err
	}

	accounts := make([]string, len(accountIDs))
	copy(accounts, accountIDs)

	run := &Run{alloc: a, accounts: accounts}
	run.cursor.reset(first, a.nav.Location())
	return run, nil
}

// Run is a single scheduling pass. It owns its cursor and must not be shared
// between goroutines.
type Run struct {
	alloc    *Allocator
	accounts []string
	cursor   cursor
	next     int
	err      error
}

// Placed returns how many leads have been placed so far.
func (r *Run) Placed() int { return r.next }

// Place assigns the next lead an account and send time. After the first error
// every later call returns that same error.
func (r *Run) Place(lead Lead) (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}

	policy := r.alloc.policy
	nav := r.alloc.nav
	c := &r.cursor
	index := r.next

	account := r.accounts[index%len(r.accounts)]

	if c.sentThisHour >= policy.EmailsPerHour {
		next, err := nav.NextHourBoundary(c.current)
		if err != nil {
			return Record{}, r.fail(index, lead, err)
		}
		if err := c.moveTo(next); err != nil {
			return Record{}, r.fail(index, lead, err)
		}
		c.sentThisHour = 0
		r.alloc.logger.Debug().Int("lead_index", index).Time("at", next).Msg("hourly cap reached, moved to next hour")
	}

	if c.sentToday >= policy.EmailsPerDay {
		next, err := nav.NextActiveDayStart(c.current)
		if err != nil {
			return Record{}, r.fail(index, lead, err)
		}
		if err := c.moveTo(next); err != nil {
			return Record{}, r.fail(index, lead, err)
		}
		c.sentToday = 0
		c.sentThisHour = 0
		r.alloc.logger.Debug().Int("lead_index", index).Time("at", next).Msg("daily cap reached, moved to next active day")
	}

	next, err := nav.NextValidWindow(c.current)
	if err != nil {
		return Record{}, r.fail(index, lead, err)
	}
	if err := c.moveTo(next); err != nil {
		return Record{}, r.fail(index, lead, err)
	}

	rec := Record{
		Index:     index,
		Lead:      lead,
		AccountID: account,
		SendAt:    policy.Jitter.ApplyJitter(c.current, lead.Email),
	}

	c.sentToday++
	c.sentThisHour++
	if err := c.moveTo(c.current.Add(policy.Interval())); err != nil {
		return Record{}, r.fail(index, lead, err)
	}

	r.next++
	return rec, nil
}

func (r *Run) fail(index int, lead Lead, err error) error {
	r.err = &LeadError{Index: index, Email: lead.Email, Err: err}
	return r.err
}

// cursor is the mutable progress of one run.
type cursor struct {
	current      time.Time
	sentToday    int
	sentThisHour int
	day          dayKey
	hour         int64 // unix start of the local hour
	loc          *time.Location
}

type dayKey struct {
	year  int
	month time.Month
	day   int
}

func (c *cursor) reset(t time.Time, loc *time.Location) {
	c.loc = loc
	c.current = t
	c.sentToday = 0
	c.sentThisHour = 0
	c.day, c.hour = c.position(t)
}

// moveTo advances the cursor, clearing the hour count when the hour changes
// and the day count when the calendar day changes. A target before the
// current position is an error; counters are left untouched.
func (c *cursor) moveTo(t time.Time) error {
	if t.Before(c.current) {
		return errors.AssertionFailedf("schedule cursor moved backwards from %s to %s", c.current, t)
	}
	day, hour := c.position(t)
	if day != c.day {
		c.sentToday = 0
		c.sentThisHour = 0
	} else if hour != c.hour {
		c.sentThisHour = 0
	}
	c.current = t
	c.day = day
	c.hour = hour
	return nil
}

func (c *cursor) position(t time.Time) (dayKey, int64) {
	local := t.In(c.loc)
	return dayKey{year: local.Year(), month: local.Month(), day: local.Day()}, hourStart(t, c.loc).Unix()
}
