/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
)

// LeadStatus tracks whether a lead has a send slot.
type LeadStatus string

const (
	LeadPending   LeadStatus = "pending"
	LeadScheduled LeadStatus = "scheduled"
)

// Lead is one recipient of a campaign.
type Lead struct {
	ID           string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	CampaignID   string            `gorm:"type:varchar(36);index:idx_leads_campaign_status,priority:1" json:"campaign_id"`
	Email        string            `gorm:"index" json:"email"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	Company      string            `json:"company"`
	Position     string            `json:"position"`
	CustomFields map[string]string `gorm:"type:text;serializer:json" json:"custom_fields,omitempty"`
	Status       LeadStatus        `gorm:"type:varchar(16);index:idx_leads_campaign_status,priority:2" json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Fields returns the personalization values for the lead. Custom fields never
// shadow the built-in columns.
func (l *Lead) Fields() map[string]string {
	fields := make(map[string]string, len(l.CustomFields)+5)
	for k, v := range l.CustomFields {
		fields[k] = v
	}
	fields["email"] = l.Email
	fields["first_name"] = l.FirstName
	fields["last_name"] = l.LastName
	fields["company"] = l.Company
	fields["position"] = l.Position
	return fields
}

// SchedulingLead projects the row onto what the allocator needs.
func (l *Lead) SchedulingLead() scheduling.Lead {
	return scheduling.Lead{ID: l.ID, Email: l.Email, Fields: l.Fields()}
}
