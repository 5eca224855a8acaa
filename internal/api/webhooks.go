/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/models"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/webhooks"
)

type webhookCreateRequest struct {
	URL        string   `json:"url"`
	CampaignID string   `json:"campaign_id"`
	Events     []string `json:"events"`
}

// webhookCreateResponse returns the signing secret once, at creation.
type webhookCreateResponse struct {
	models.WebhookTarget
	Secret string `json:"secret"`
}

var webhookEventNames = map[string]bool{
	string(events.EventCampaignScheduled): true,
	string(events.EventScheduleFailed):    true,
	string(events.EventExportPublished):   true,
}

func (a *API) handleWebhookList(w http.ResponseWriter, r *http.Request) {
	var targets []models.WebhookTarget
	if err := a.db.WithContext(r.Context()).Order("created_at ASC").Find(&targets).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": targets})
}

func (a *API) handleWebhookCreate(w http.ResponseWriter, r *http.Request) {
	var req webhookCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "invalid_url")
		return
	}
	for _, e := range req.Events {
		if !webhookEventNames[e] {
			writeError(w, http.StatusBadRequest, "invalid_event")
			return
		}
	}
	if req.CampaignID != "" && !a.campaignExists(w, r, req.CampaignID) {
		return
	}

	target := models.NewWebhookTarget(req.CampaignID, u.String(), strings.Join(req.Events, ","))
	if err := a.db.WithContext(r.Context()).Create(target).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.logger.Info().Str("webhook_id", target.ID).Str("url", target.URL).Msg("webhook registered")
	writeJSON(w, http.StatusCreated, webhookCreateResponse{WebhookTarget: *target, Secret: target.Secret})
}

func (a *API) loadWebhook(w http.ResponseWriter, r *http.Request) (*models.WebhookTarget, bool) {
	var target models.WebhookTarget
	err := a.db.WithContext(r.Context()).First(&target, "id = ?", chi.URLParam(r, "webhookID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "webhook_not_found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}
	return &target, true
}

func (a *API) handleWebhookDelete(w http.ResponseWriter, r *http.Request) {
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}
	err := a.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("target_id = ?", target.ID).Delete(&models.WebhookLog{}).Error; err != nil {
			return err
		}
		return tx.Delete(target).Error
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWebhookTest(w http.ResponseWriter, r *http.Request) {
	if a.webhookSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "webhooks_disabled")
		return
	}
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}
	if err := a.webhookSvc.TestWebhook(r.Context(), target); err != nil {
		if errors.Is(err, webhooks.ErrDeliveryFailed) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "delivery_failed", "message": err.Error()})
			return
		}
		writeError(w, http.StatusInternalServerError, "webhook_test_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

func (a *API) handleWebhookLogs(w http.ResponseWriter, r *http.Request) {
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 50, 500)

	var logs []models.WebhookLog
	if err := a.db.WithContext(r.Context()).
		Where("target_id = ?", target.ID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "limit": limit, "offset": offset})
}
