/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package audit persists campaign changes and scheduling outcomes.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/models"
)

// actions maps the events the service records to their audit action.
var actions = map[events.EventType]models.AuditAction{
	events.EventCampaignUpdated:   models.AuditActionCampaignUpdate,
	events.EventScheduleRequested: models.AuditActionScheduleRequest,
	events.EventCampaignScheduled: models.AuditActionScheduleComplete,
	events.EventScheduleFailed:    models.AuditActionScheduleFail,
	events.EventAccountUpdated:    models.AuditActionAccountUpdate,
	events.EventExportPublished:   models.AuditActionExportPublish,
}

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

type received struct {
	action  models.AuditAction
	payload events.Payload
}

// Start subscribes to relevant events and logs them as audit entries. It
// blocks until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("audit service starting")

	merged := make(chan received, 64)
	subs := make(map[events.EventType]events.Subscriber, len(actions))
	for eventType, action := range actions {
		sub := s.bus.Subscribe(eventType)
		subs[eventType] = sub
		go func(sub events.Subscriber, action models.AuditAction) {
			for {
				select {
				case <-ctx.Done():
					return
				case payload := <-sub:
					select {
					case merged <- received{action: action, payload: payload}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(sub, action)
	}
	defer func() {
		for eventType, sub := range subs {
			s.bus.Unsubscribe(eventType, sub)
		}
	}()

	s.logger.Info().Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return
		case r := <-merged:
			// The originating node already wrote the entry to the shared database.
			if r.payload.Relayed() {
				continue
			}
			s.logAuditEntry(ctx, r.action, r.payload)
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := &models.AuditLog{
		Action:  action,
		Details: make(map[string]any),
	}

	if actor, ok := payload["actor"].(string); ok {
		entry.Actor = actor
	}
	if campaignID, ok := payload["campaign_id"].(string); ok && campaignID != "" {
		entry.CampaignID = &campaignID
		entry.ResourceType = "campaign"
		entry.ResourceID = campaignID
	}
	if accountID, ok := payload["account_id"].(string); ok && accountID != "" {
		entry.ResourceType = "email_account"
		entry.ResourceID = accountID
	}
	if ipAddress, ok := payload["ip_address"].(string); ok {
		entry.IPAddress = ipAddress
	}

	// Copy remaining fields to details
	for k, v := range payload {
		switch k {
		case "actor", "campaign_id", "account_id", "ip_address":
			// Already extracted
		default:
			entry.Details[k] = v
		}
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly (for non-event-bus actions).
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = entry.Timestamp
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Msg("audit entry logged")

	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	Actor      *string
	CampaignID *string
	Action     *models.AuditAction
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int
	Offset     int
}

// Query retrieves audit logs with filters, most recent first.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.Actor != nil {
		query = query.Where("actor = ?", *filters.Actor)
	}
	if filters.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filters.CampaignID)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100) // Default limit
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
