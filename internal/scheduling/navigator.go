/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"time"
	_ "time/tzdata" // zones must resolve on hosts without a zoneinfo database
)

// Iteration bounds. With a validated policy NextValidWindow settles in at most
// eight steps and NextActiveDayStart in seven; the bounds turn a broken policy
// into ErrPolicyUnsatisfiable instead of a hang.
const (
	maxWindowIterations = 30
	maxDayIterations    = 7
)

// Navigator answers whether a moment is inside a policy's sending window and
// finds the next moment that is.
type Navigator struct {
	policy Policy
	loc    *time.Location
}

// NewNavigator builds a navigator for policy. Calendar days and hours are
// evaluated in the policy time zone; an unknown zone falls back to UTC.
func NewNavigator(policy Policy) *Navigator {
	loc, err := time.LoadLocation(policy.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Navigator{policy: policy, loc: loc}
}

// Location returns the zone the navigator computes in.
func (n *Navigator) Location() *time.Location {
	return n.loc
}

// IsSendable reports whether t falls on an active weekday inside [start, end).
func (n *Navigator) IsSendable(t time.Time) bool {
	local := t.In(n.loc)
	if !n.policy.ActiveWeekdays.Has(local.Weekday()) {
		return false
	}
	hour := local.Hour()
	return hour >= n.policy.Window.StartHour && hour < n.policy.Window.EndHour
}

// NextValidWindow returns t if it is sendable, otherwise the earliest later
// moment that is.
func (n *Navigator) NextValidWindow(t time.Time) (time.Time, error) {
	cursor := t
	for i := 0; i < maxWindowIterations; i++ {
		if n.IsSendable(cursor) {
			return cursor, nil
		}

		local := cursor.In(n.loc)
		var err error
		switch {
		case !n.policy.ActiveWeekdays.Has(local.Weekday()):
			cursor, err = n.NextActiveDayStart(cursor)
		case local.Hour() < n.policy.Window.StartHour:
			cursor = n.atStartHour(local.Year(), local.Month(), local.Day())
		default:
			cursor, err = n.NextActiveDayStart(cursor)
		}
		if err != nil {
			return time.Time{}, err
		}
	}
	return time.Time{}, unsatisfiable("next valid window", t, n.policy, maxWindowIterations)
}

// NextActiveDayStart returns the window start on the first active day after t's
// calendar day.
func (n *Navigator) NextActiveDayStart(t time.Time) (time.Time, error) {
	local := t.In(n.loc)
	next := n.atStartHour(local.Year(), local.Month(), local.Day()+1)
	for i := 0; i < maxDayIterations; i++ {
		if n.policy.ActiveWeekdays.Has(next.Weekday()) {
			return next, nil
		}
		next = n.atStartHour(next.Year(), next.Month(), next.Day()+1)
	}
	return time.Time{}, unsatisfiable("next active day", t, n.policy, maxDayIterations)
}

// NextHourBoundary moves to the top of the following hour, or to the next
// active day when that hour is past the window. The boundary is computed in
// absolute time, so across a DST fall-back the repeated hour counts as a new
// hour and the result is always after t.
func (n *Navigator) NextHourBoundary(t time.Time) (time.Time, error) {
	next := hourStart(t, n.loc).Add(time.Hour)
	if next.In(n.loc).Hour() >= n.policy.Window.EndHour {
		return n.NextActiveDayStart(next)
	}
	return n.NextValidWindow(next)
}

// hourStart truncates t to the start of its local hour.
func hourStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return t.Add(-time.Duration(local.Minute())*time.Minute -
		time.Duration(local.Second())*time.Second -
		time.Duration(local.Nanosecond()))
}

func (n *Navigator) atStartHour(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, n.policy.Window.StartHour, 0, 0, 0, n.loc)
}
