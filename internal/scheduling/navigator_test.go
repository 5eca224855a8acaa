/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"errors"
	"testing"
	"time"
)

// 2026-03-02 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, time.UTC)
}

func businessPolicy() Policy {
	return Validate(RawPolicy{
		StartHour:  Hour(9),
		EndHour:    Hour(17),
		ActiveDays: []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		Jitter:     RawJitter{Enabled: boolPtr(false)},
	}, nil)
}

func TestIsSendable(t *testing.T) {
	nav := NewNavigator(businessPolicy())

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{name: "monday at start", t: at(2, 9, 0), want: true},
		{name: "monday last minute", t: at(2, 16, 59), want: true},
		{name: "monday at end", t: at(2, 17, 0), want: false},
		{name: "monday before start", t: at(2, 8, 59), want: false},
		{name: "saturday midday", t: at(7, 12, 0), want: false},
		{name: "sunday midday", t: at(8, 12, 0), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nav.IsSendable(tt.t); got != tt.want {
				t.Fatalf("IsSendable(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestNextValidWindow(t *testing.T) {
	nav := NewNavigator(businessPolicy())

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{name: "already sendable", from: at(2, 10, 17), want: at(2, 10, 17)},
		{name: "early morning", from: at(3, 6, 45), want: at(3, 9, 0)},
		{name: "after hours", from: at(3, 17, 0), want: at(4, 9, 0)},
		{name: "friday evening", from: at(6, 18, 30), want: at(9, 9, 0)},
		{name: "saturday", from: at(7, 11, 0), want: at(9, 9, 0)},
		{name: "sunday night", from: at(8, 23, 59), want: at(9, 9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nav.NextValidWindow(tt.from)
			if err != nil {
				t.Fatalf("NextValidWindow: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("NextValidWindow(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestNextValidWindowIsMonotonicAndSendable(t *testing.T) {
	policies := []Policy{
		businessPolicy(),
		Validate(RawPolicy{StartHour: Hour(22), EndHour: Hour(23), ActiveDays: []string{"sunday"}}, nil),
		Validate(RawPolicy{StartHour: Hour(0), EndHour: Hour(0)}, nil),
		Validate(RawPolicy{StartHour: Hour(6), EndHour: Hour(8), Timezone: "America/New_York", ActiveDays: []string{"sat"}}, nil),
	}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for pi, p := range policies {
		nav := NewNavigator(p)
		for step := 0; step < 14*24*4; step++ {
			from := base.Add(time.Duration(step) * 15 * time.Minute)
			got, err := nav.NextValidWindow(from)
			if err != nil {
				t.Fatalf("policy %d from %v: %v", pi, from, err)
			}
			if got.Before(from) {
				t.Fatalf("policy %d: NextValidWindow(%v) = %v moved backwards", pi, from, got)
			}
			if !nav.IsSendable(got) {
				t.Fatalf("policy %d: NextValidWindow(%v) = %v is not sendable", pi, from, got)
			}
		}
	}
}

func TestNextActiveDayStart(t *testing.T) {
	nav := NewNavigator(businessPolicy())

	got, err := nav.NextActiveDayStart(at(2, 10, 30))
	if err != nil {
		t.Fatalf("NextActiveDayStart: %v", err)
	}
	if want := at(3, 9, 0); !got.Equal(want) {
		t.Fatalf("from monday = %v, want %v", got, want)
	}

	got, err = nav.NextActiveDayStart(at(6, 9, 0))
	if err != nil {
		t.Fatalf("NextActiveDayStart: %v", err)
	}
	if want := at(9, 9, 0); !got.Equal(want) {
		t.Fatalf("from friday = %v, want %v", got, want)
	}
}

func TestNextHourBoundary(t *testing.T) {
	nav := NewNavigator(businessPolicy())

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{name: "mid hour", from: at(2, 9, 10), want: at(2, 10, 0)},
		{name: "last hour rolls to next day", from: at(2, 16, 40), want: at(3, 9, 0)},
		{name: "friday last hour rolls to monday", from: at(6, 16, 5), want: at(9, 9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nav.NextHourBoundary(tt.from)
			if err != nil {
				t.Fatalf("NextHourBoundary: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("NextHourBoundary(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

// nightPolicy sends around the clock's early hours in New York, which is
// where DST transitions happen.
func nightPolicy(perHour int) Policy {
	return Validate(RawPolicy{
		Timezone:               "America/New_York",
		StartHour:              Hour(0),
		EndHour:                Hour(8),
		ActiveDays:             []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"},
		EmailsPerDay:           100,
		EmailsPerHour:          perHour,
		SendingIntervalMinutes: 5,
		Jitter:                 RawJitter{Enabled: boolPtr(false)},
	}, nil)
}

func TestNextHourBoundaryAcrossDST(t *testing.T) {
	nav := NewNavigator(nightPolicy(2))

	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		// 2026-11-01 01:40 EDT; the next hour is the repeated 01:00 EST.
		{name: "fall back first 1am", from: time.Date(2026, 11, 1, 5, 40, 0, 0, time.UTC), want: time.Date(2026, 11, 1, 6, 0, 0, 0, time.UTC)},
		{name: "fall back second 1am", from: time.Date(2026, 11, 1, 6, 40, 0, 0, time.UTC), want: time.Date(2026, 11, 1, 7, 0, 0, 0, time.UTC)},
		// 2026-03-08 01:40 EST; 02:00 does not exist, 03:00 EDT follows.
		{name: "spring forward", from: time.Date(2026, 3, 8, 6, 40, 0, 0, time.UTC), want: time.Date(2026, 3, 8, 7, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nav.NextHourBoundary(tt.from)
			if err != nil {
				t.Fatalf("NextHourBoundary: %v", err)
			}
			if !got.After(tt.from) {
				t.Fatalf("NextHourBoundary(%v) = %v, not after its input", tt.from, got)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("NextHourBoundary(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestNavigatorReportsUnsatisfiablePolicy(t *testing.T) {
	// Only reachable by bypassing Validate.
	nav := NewNavigator(Policy{Timezone: "UTC", Window: Window{StartHour: 9, EndHour: 17}})

	if _, err := nav.NextValidWindow(at(2, 10, 0)); !errors.Is(err, ErrPolicyUnsatisfiable) {
		t.Fatalf("NextValidWindow error = %v, want ErrPolicyUnsatisfiable", err)
	}
	if _, err := nav.NextActiveDayStart(at(2, 10, 0)); !errors.Is(err, ErrPolicyUnsatisfiable) {
		t.Fatalf("NextActiveDayStart error = %v, want ErrPolicyUnsatisfiable", err)
	}

	inverted := NewNavigator(Policy{Timezone: "UTC", Window: Window{StartHour: 17, EndHour: 9}, ActiveWeekdays: WeekdaysMonFri})
	if _, err := inverted.NextValidWindow(at(2, 10, 0)); !errors.Is(err, ErrPolicyUnsatisfiable) {
		t.Fatalf("inverted window error = %v, want ErrPolicyUnsatisfiable", err)
	}
}

func TestNavigatorUsesPolicyTimezone(t *testing.T) {
	p := businessPolicy()
	p.Timezone = "America/New_York"
	nav := NewNavigator(p)

	// 13:00 UTC on a March Monday is 08:00 in New York (EST, UTC-5).
	got, err := nav.NextValidWindow(at(2, 13, 0))
	if err != nil {
		t.Fatalf("NextValidWindow: %v", err)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, nav.Location())
	if !got.Equal(want) {
		t.Fatalf("NextValidWindow = %v, want %v", got, want)
	}
	if got.UTC().Hour() != 14 {
		t.Fatalf("utc hour = %d, want 14", got.UTC().Hour())
	}
}
