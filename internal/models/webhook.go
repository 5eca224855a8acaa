/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WebhookTarget is an HTTP endpoint notified of scheduling outcomes. An empty
// CampaignID subscribes to every campaign.
type WebhookTarget struct {
	ID         string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	CampaignID *string `gorm:"type:varchar(36);index" json:"campaign_id,omitempty"`
	URL        string  `gorm:"type:varchar(512);not null" json:"url"`
	Events     string  `gorm:"type:varchar(255)" json:"events"` // comma-separated: campaign.scheduled,schedule.failed
	Secret     string  `gorm:"type:varchar(255)" json:"-"`      // for HMAC signing
	Active     bool    `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (WebhookTarget) TableName() string {
	return "webhook_targets"
}

// NewWebhookTarget creates a new webhook target with a random secret.
func NewWebhookTarget(campaignID, url, events string) *WebhookTarget {
	t := &WebhookTarget{
		ID:     uuid.NewString(),
		URL:    url,
		Events: events,
		Secret: uuid.NewString(),
		Active: true,
	}
	if campaignID != "" {
		t.CampaignID = &campaignID
	}
	return t
}

// Handles reports whether the target subscribes to event. No events means all.
func (t WebhookTarget) Handles(event string) bool {
	if strings.TrimSpace(t.Events) == "" {
		return true
	}
	for _, e := range strings.Split(t.Events, ",") {
		if strings.TrimSpace(e) == event {
			return true
		}
	}
	return false
}

// WebhookLog records webhook delivery attempts.
type WebhookLog struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	TargetID   string    `gorm:"type:varchar(36);index;not null" json:"target_id"`
	Event      string    `gorm:"type:varchar(64);not null" json:"event"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	StatusCode int       `json:"status_code"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	Duration   int       `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (WebhookLog) TableName() string {
	return "webhook_logs"
}
