/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
)

// CampaignStatus tracks a campaign through scheduling.
type CampaignStatus string

const (
	CampaignDraft      CampaignStatus = "draft"
	CampaignReady      CampaignStatus = "ready"
	CampaignScheduling CampaignStatus = "scheduling"
	CampaignScheduled  CampaignStatus = "scheduled"
	CampaignFailed     CampaignStatus = "failed"
)

// Campaign holds the sending policy and templates for a batch of leads. Policy
// columns are stored as entered; nothing here is trusted until it has been
// through scheduling.Validate.
type Campaign struct {
	ID     string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name   string         `gorm:"index" json:"name"`
	Status CampaignStatus `gorm:"type:varchar(16);index" json:"status"`

	Timezone               string   `gorm:"type:varchar(64)" json:"timezone"`
	EmailsPerDay           int      `json:"emails_per_day"`
	EmailsPerHour          int      `json:"emails_per_hour"`
	SendingIntervalMinutes int      `json:"sending_interval_minutes"`
	StartHour              string   `gorm:"type:varchar(16)" json:"start_hour"`
	EndHour                string   `gorm:"type:varchar(16)" json:"end_hour"`
	ActiveDays             []string `gorm:"type:text;serializer:json" json:"active_days"`
	JitterEnabled          *bool    `json:"jitter_enabled"`
	JitterMaxMinutes       int      `json:"jitter_max_minutes"`

	SubjectTemplate string     `gorm:"type:text" json:"subject_template"`
	BodyTemplate    string     `gorm:"type:text" json:"body_template"`
	StartAt         *time.Time `json:"start_at,omitempty"`

	LastError       string     `gorm:"type:text" json:"last_error,omitempty"`
	LastErrorKind   string     `gorm:"type:varchar(32)" json:"last_error_kind,omitempty"`
	FailedLeadIndex *int       `json:"failed_lead_index,omitempty"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// RawPolicy returns the campaign's sending policy in untrusted form.
func (c *Campaign) RawPolicy() scheduling.RawPolicy {
	return scheduling.RawPolicy{
		Timezone:               c.Timezone,
		EmailsPerDay:           c.EmailsPerDay,
		EmailsPerHour:          c.EmailsPerHour,
		SendingIntervalMinutes: c.SendingIntervalMinutes,
		StartHour:              hourColumn(c.StartHour),
		EndHour:                hourColumn(c.EndHour),
		ActiveDays:             c.ActiveDays,
		Jitter: scheduling.RawJitter{
			Enabled:    c.JitterEnabled,
			MaxMinutes: c.JitterMaxMinutes,
		},
	}
}

// ApplyPolicy writes a raw policy back onto the campaign columns.
func (c *Campaign) ApplyPolicy(raw scheduling.RawPolicy) {
	c.Timezone = raw.Timezone
	c.EmailsPerDay = raw.EmailsPerDay
	c.EmailsPerHour = raw.EmailsPerHour
	c.SendingIntervalMinutes = raw.SendingIntervalMinutes
	c.StartHour = raw.StartHour.String()
	c.EndHour = raw.EndHour.String()
	c.ActiveDays = raw.ActiveDays
	c.JitterEnabled = raw.Jitter.Enabled
	c.JitterMaxMinutes = raw.Jitter.MaxMinutes
}

// Schedulable reports whether the sweep may pick the campaign up.
func (c *Campaign) Schedulable() bool {
	return c.Status == CampaignReady
}

// An empty column means the hour was never set.
func hourColumn(v string) scheduling.HourValue {
	if strings.TrimSpace(v) == "" {
		return scheduling.HourValue{}
	}
	return scheduling.HourText(v)
}
