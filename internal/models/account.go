/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AccountStatus tracks whether a mailbox may be used for sending.
type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountPaused AccountStatus = "paused"
	AccountError  AccountStatus = "error"
)

// EmailAccount is a sending mailbox.
type EmailAccount struct {
	ID          string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email       string        `gorm:"uniqueIndex;type:varchar(255)" json:"email"`
	DisplayName string        `json:"display_name"`
	Provider    string        `gorm:"type:varchar(32)" json:"provider"`
	Status      AccountStatus `gorm:"type:varchar(16);index" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// CampaignAccount assigns a sending account to a campaign. Position fixes the
// round robin order.
type CampaignAccount struct {
	CampaignID     string `gorm:"type:varchar(36);primaryKey"`
	EmailAccountID string `gorm:"type:varchar(36);primaryKey"`
	Position       int
	CreatedAt      time.Time
}
