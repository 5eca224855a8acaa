/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

// Audit action constants for campaign and account changes.
const (
	AuditActionCampaignUpdate   AuditAction = "campaign.update"
	AuditActionScheduleRequest  AuditAction = "schedule.request"
	AuditActionScheduleComplete AuditAction = "schedule.complete"
	AuditActionScheduleFail     AuditAction = "schedule.fail"
	AuditActionAccountUpdate    AuditAction = "account.update"
	AuditActionExportPublish    AuditAction = "export.publish"
)

// AuditLog records who changed what, and every scheduling outcome.
type AuditLog struct {
	ID           string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null" json:"timestamp"`
	Actor        string         `gorm:"type:varchar(255);index:idx_audit_actor" json:"actor,omitempty"` // empty for system actions
	CampaignID   *string        `gorm:"type:varchar(36);index:idx_audit_campaign" json:"campaign_id,omitempty"`
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null" json:"action"`
	ResourceType string         `gorm:"type:varchar(64)" json:"resource_type,omitempty"`
	ResourceID   string         `gorm:"type:varchar(36)" json:"resource_id,omitempty"`
	Details      map[string]any `gorm:"type:text;serializer:json" json:"details,omitempty"`
	IPAddress    string         `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
