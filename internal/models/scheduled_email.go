/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ScheduledEmailStatus tracks a queued email. Sending is out of scope here;
// rows are only ever created as pending.
type ScheduledEmailStatus string

const (
	ScheduledEmailPending ScheduledEmailStatus = "pending"
)

// ScheduledEmail is one lead's placement: which account sends what, and when.
type ScheduledEmail struct {
	ID             string               `gorm:"type:varchar(36);primaryKey" json:"id"`
	CampaignID     string               `gorm:"type:varchar(36);index:idx_scheduled_campaign_send,priority:1" json:"campaign_id"`
	LeadID         string               `gorm:"type:varchar(36);index" json:"lead_id"`
	EmailAccountID string               `gorm:"type:varchar(36);index" json:"email_account_id"`
	LeadIndex      int                  `json:"lead_index"`
	ToEmail        string               `json:"to_email"`
	Subject        string               `gorm:"type:text" json:"subject"`
	Body           string               `gorm:"type:text" json:"body"`
	SendAt         time.Time            `gorm:"index:idx_scheduled_campaign_send,priority:2" json:"send_at"`
	Status         ScheduledEmailStatus `gorm:"type:varchar(16);index" json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
}
