/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/audit"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/models"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/timeutil"
)

// auditLogResponse is the JSON response for an audit log entry.
type auditLogResponse struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Actor        string         `json:"actor,omitempty"`
	CampaignID   *string        `json:"campaign_id,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
}

// handleAuditList returns a paginated list of audit logs (admin only).
func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	filters := parseAuditFilters(r)
	if campaignID := r.URL.Query().Get("campaign_id"); campaignID != "" {
		filters.CampaignID = &campaignID
	}
	a.writeAuditLogs(w, r, filters)
}

// handleCampaignAuditList returns audit logs for a specific campaign.
func (a *API) handleCampaignAuditList(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	filters := parseAuditFilters(r)
	filters.CampaignID = &campaignID
	a.writeAuditLogs(w, r, filters)
}

func (a *API) writeAuditLogs(w http.ResponseWriter, r *http.Request, filters audit.QueryFilters) {
	logs, total, err := a.auditSvc.Query(r.Context(), filters)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to query audit logs")
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}

	response := make([]auditLogResponse, len(logs))
	for i, log := range logs {
		response[i] = toAuditLogResponse(log)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"audit_logs": response,
		"total":      total,
		"limit":      filters.Limit,
		"offset":     filters.Offset,
	})
}

// parseAuditFilters extracts audit query filters from request parameters.
func parseAuditFilters(r *http.Request) audit.QueryFilters {
	limit, offset := pagination(r, 50, 1000)
	filters := audit.QueryFilters{Limit: limit, Offset: offset}

	if actor := r.URL.Query().Get("actor"); actor != "" {
		filters.Actor = &actor
	}

	if action := r.URL.Query().Get("action"); action != "" {
		a := models.AuditAction(action)
		filters.Action = &a
	}

	if startTime := r.URL.Query().Get("start_time"); startTime != "" {
		if t, err := timeutil.Parse(startTime); err == nil {
			filters.StartTime = &t
		}
	}

	if endTime := r.URL.Query().Get("end_time"); endTime != "" {
		if t, err := timeutil.Parse(endTime); err == nil {
			filters.EndTime = &t
		}
	}

	return filters
}

// toAuditLogResponse converts an AuditLog model to a response struct.
func toAuditLogResponse(log models.AuditLog) auditLogResponse {
	return auditLogResponse{
		ID:           log.ID,
		Timestamp:    log.Timestamp,
		Actor:        log.Actor,
		CampaignID:   log.CampaignID,
		Action:       string(log.Action),
		ResourceType: log.ResourceType,
		ResourceID:   log.ResourceID,
		Details:      log.Details,
		IPAddress:    log.IPAddress,
	}
}
