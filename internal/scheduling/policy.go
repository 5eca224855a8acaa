/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/telemetry"
)

// Defaults applied when a policy field is missing or beyond repair.
const (
	DefaultStartHour        = 9
	DefaultEndHour          = 17
	DefaultEmailsPerDay     = 50
	DefaultEmailsPerHour    = 10
	MinSendingInterval      = 5
	DefaultJitterMaxMinutes = 3
	MinJitterMinutes        = 1
	MaxJitterMinutes        = 3
	DefaultTimezone         = "UTC"
)

// RawPolicy is a campaign's sending policy before validation.
type RawPolicy struct {
	Timezone               string    `json:"timezone" yaml:"timezone"`
	EmailsPerDay           int       `json:"emails_per_day" yaml:"emails_per_day"`
	EmailsPerHour          int       `json:"emails_per_hour" yaml:"emails_per_hour"`
	SendingIntervalMinutes int       `json:"sending_interval_minutes" yaml:"sending_interval_minutes"`
	StartHour              HourValue `json:"start_hour" yaml:"start_hour"`
	EndHour                HourValue `json:"end_hour" yaml:"end_hour"`
	ActiveDays             []string  `json:"active_days" yaml:"active_days"`
	Jitter                 RawJitter `json:"jitter" yaml:"jitter"`
}

// RawJitter is the unvalidated jitter block. A nil Enabled means "on".
type RawJitter struct {
	Enabled    *bool `json:"enabled" yaml:"enabled"`
	MaxMinutes int   `json:"max_minutes" yaml:"max_minutes"`
}

// Window is the half-open hour-of-day range [StartHour, EndHour).
type Window struct {
	StartHour int
	EndHour   int
}

// Jitter controls the per-lead send time offset.
type Jitter struct {
	Enabled    bool
	MaxMinutes int
}

// Policy is a validated sending policy. Values are comparable with ==.
type Policy struct {
	Timezone        string
	EmailsPerDay    int
	EmailsPerHour   int
	SendingInterval int // minutes
	Window          Window
	ActiveWeekdays  Weekdays
	Jitter          Jitter
}

// Interval returns the minimum spacing between sends.
func (p Policy) Interval() time.Duration {
	return time.Duration(p.SendingInterval) * time.Minute
}

// Raw projects the policy back into its untrusted form.
func (p Policy) Raw() RawPolicy {
	enabled := p.Jitter.Enabled
	return RawPolicy{
		Timezone:               p.Timezone,
		EmailsPerDay:           p.EmailsPerDay,
		EmailsPerHour:          p.EmailsPerHour,
		SendingIntervalMinutes: p.SendingInterval,
		StartHour:              Hour(p.Window.StartHour),
		EndHour:                Hour(p.Window.EndHour),
		ActiveDays:             p.ActiveWeekdays.Names(),
		Jitter:                 RawJitter{Enabled: &enabled, MaxMinutes: p.Jitter.MaxMinutes},
	}
}

// Repair describes one correction Validate made to a raw policy.
type Repair struct {
	Field  string `json:"field"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// Validate normalizes a raw policy into a safe one. It never fails: invalid
// input is repaired and every repair is passed to report, which may be nil.
func Validate(raw RawPolicy, report func(Repair)) Policy {
	if report == nil {
		report = func(Repair) {}
	}

	start, ok := ParseHour(raw.StartHour, DefaultStartHour)
	if !ok {
		report(Repair{Field: "start_hour", From: raw.StartHour.String(), To: strconv.Itoa(start), Reason: "not a number"})
	}
	end, ok := ParseHour(raw.EndHour, DefaultEndHour)
	if !ok {
		report(Repair{Field: "end_hour", From: raw.EndHour.String(), To: strconv.Itoa(end), Reason: "not a number"})
	}
	if c := clamp(start, 0, 23); c != start {
		report(Repair{Field: "start_hour", From: strconv.Itoa(start), To: strconv.Itoa(c), Reason: "outside 0-23"})
		start = c
	}
	if c := clamp(end, 0, 23); c != end {
		report(Repair{Field: "end_hour", From: strconv.Itoa(end), To: strconv.Itoa(c), Reason: "outside 0-23"})
		end = c
	}
	if start >= end {
		report(Repair{
			Field:  "sending_hours",
			From:   windowString(start, end),
			To:     windowString(DefaultStartHour, DefaultEndHour),
			Reason: "start hour must be before end hour",
		})
		start, end = DefaultStartHour, DefaultEndHour
	}
	if end-start < 1 {
		from := windowString(start, end)
		if start < 23 {
			end = start + 1
		} else {
			start, end = 22, 23
		}
		report(Repair{Field: "sending_hours", From: from, To: windowString(start, end), Reason: "window shorter than one hour"})
	}

	interval := raw.SendingIntervalMinutes
	if interval < MinSendingInterval {
		if interval != 0 {
			report(Repair{Field: "sending_interval_minutes", From: strconv.Itoa(interval), To: strconv.Itoa(MinSendingInterval), Reason: "below minimum interval"})
		}
		interval = MinSendingInterval
	}

	jitter := Jitter{Enabled: true, MaxMinutes: raw.Jitter.MaxMinutes}
	if raw.Jitter.Enabled != nil {
		jitter.Enabled = *raw.Jitter.Enabled
	}
	if jitter.MaxMinutes == 0 {
		jitter.MaxMinutes = DefaultJitterMaxMinutes
	} else if c := clamp(jitter.MaxMinutes, MinJitterMinutes, MaxJitterMinutes); c != jitter.MaxMinutes {
		report(Repair{Field: "jitter.max_minutes", From: strconv.Itoa(jitter.MaxMinutes), To: strconv.Itoa(c), Reason: "outside 1-3"})
		jitter.MaxMinutes = c
	}

	var days Weekdays
	var dropped []string
	for _, name := range raw.ActiveDays {
		d, ok := ParseWeekday(name)
		if !ok {
			dropped = append(dropped, name)
			continue
		}
		days = days.With(d)
	}
	if len(dropped) > 0 {
		report(Repair{Field: "active_days", From: strings.Join(dropped, ","), Reason: "unknown day names dropped"})
	}
	if days.Empty() {
		if len(raw.ActiveDays) > 0 {
			report(Repair{Field: "active_days", From: strings.Join(raw.ActiveDays, ","), To: WeekdaysMonFri.String(), Reason: "no valid days left"})
		}
		days = WeekdaysMonFri
	}

	perDay := raw.EmailsPerDay
	if perDay <= 0 {
		if perDay < 0 {
			report(Repair{Field: "emails_per_day", From: strconv.Itoa(perDay), To: strconv.Itoa(DefaultEmailsPerDay), Reason: "must be positive"})
		}
		perDay = DefaultEmailsPerDay
	}
	perHour := raw.EmailsPerHour
	if perHour <= 0 {
		if perHour < 0 {
			report(Repair{Field: "emails_per_hour", From: strconv.Itoa(perHour), To: strconv.Itoa(DefaultEmailsPerHour), Reason: "must be positive"})
		}
		perHour = DefaultEmailsPerHour
	}

	tz := strings.TrimSpace(raw.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	} else if _, err := time.LoadLocation(tz); err != nil {
		report(Repair{Field: "timezone", From: tz, To: DefaultTimezone, Reason: "unknown time zone"})
		tz = DefaultTimezone
	}

	return Policy{
		Timezone:        tz,
		EmailsPerDay:    perDay,
		EmailsPerHour:   perHour,
		SendingInterval: interval,
		Window:          Window{StartHour: start, EndHour: end},
		ActiveWeekdays:  days,
		Jitter:          jitter,
	}
}

// Validator runs Validate and logs what it repaired.
type Validator struct {
	logger zerolog.Logger
}

// NewValidator creates a policy validator.
func NewValidator(logger zerolog.Logger) *Validator {
	return &Validator{
		logger: logger.With().Str("component", "policy_validator").Logger(),
	}
}

// Validate repairs raw and returns the policy alongside the repairs made.
func (v *Validator) Validate(raw RawPolicy) (Policy, []Repair) {
	var repairs []Repair
	policy := Validate(raw, func(r Repair) {
		repairs = append(repairs, r)
		telemetry.PolicyRepairsTotal.WithLabelValues(r.Field).Inc()
		v.logger.Warn().
			Str("field", r.Field).
			Str("from", r.From).
			Str("to", r.To).
			Str("reason", r.Reason).
			Msg("repaired scheduling policy")
	})
	return policy, repairs
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func windowString(start, end int) string {
	return strconv.Itoa(start) + "-" + strconv.Itoa(end)
}
