/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/models"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduler"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/timeutil"
)

type scheduleCampaignRequest struct {
	StartTime string `json:"start_time"`
}

type accountStatusRequest struct {
	Status models.AccountStatus `json:"status"`
}

type policyResponse struct {
	CampaignID string               `json:"campaign_id"`
	Stored     scheduling.RawPolicy `json:"stored"`
	Effective  scheduling.RawPolicy `json:"effective"`
	Repairs    []scheduling.Repair  `json:"repairs"`
}

func (a *API) handleScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	var req scheduleCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	var start *time.Time
	if req.StartTime != "" {
		t, err := timeutil.Parse(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time")
			return
		}
		start = &t
	}

	payload := a.auditContext(r)
	payload["campaign_id"] = campaignID
	if start != nil {
		payload["start_time"] = timeutil.ToStorageFormat(*start)
	}
	a.bus.Publish(events.EventScheduleRequested, payload)

	result, err := a.scheduler.ScheduleCampaign(r.Context(), campaignID, start)
	switch {
	case errors.Is(err, scheduler.ErrCampaignNotFound):
		writeError(w, http.StatusNotFound, "campaign_not_found")
		return
	case errors.Is(err, scheduler.ErrCampaignBusy):
		writeError(w, http.StatusConflict, "campaign_busy")
		return
	case err != nil:
		a.writeSchedulingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleScheduleList(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if !a.campaignExists(w, r, campaignID) {
		return
	}

	limit, offset := pagination(r, 100, 1000)

	scoped := func() *gorm.DB {
		return a.db.WithContext(r.Context()).Model(&models.ScheduledEmail{}).Where("campaign_id = ?", campaignID)
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var emails []models.ScheduledEmail
	if err := scoped().Order("send_at ASC").Order("lead_index ASC").
		Limit(limit).Offset(offset).
		Find(&emails).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scheduled_emails": emails,
		"total":            total,
		"limit":            limit,
		"offset":           offset,
	})
}

func (a *API) handleCampaignPolicyUpdate(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	var raw scheduling.RawPolicy
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	var campaign models.Campaign
	if err := a.db.WithContext(r.Context()).First(&campaign, "id = ?", campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "campaign_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if campaign.Status == models.CampaignScheduling {
		writeError(w, http.StatusConflict, "campaign_busy")
		return
	}

	campaign.ApplyPolicy(raw)
	if err := a.db.WithContext(r.Context()).Model(&campaign).
		Select("timezone", "emails_per_day", "emails_per_hour", "sending_interval_minutes",
			"start_hour", "end_hour", "active_days", "jitter_enabled", "jitter_max_minutes").
		Updates(&campaign).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var repairs []scheduling.Repair
	policy := scheduling.Validate(campaign.RawPolicy(), func(rep scheduling.Repair) {
		repairs = append(repairs, rep)
	})

	payload := a.auditContext(r)
	payload["campaign_id"] = campaignID
	payload["change"] = "policy"
	payload["repairs"] = len(repairs)
	a.bus.Publish(events.EventCampaignUpdated, payload)

	writeJSON(w, http.StatusOK, policyResponse{
		CampaignID: campaignID,
		Stored:     campaign.RawPolicy(),
		Effective:  policy.Raw(),
		Repairs:    repairs,
	})
}

// handleCampaignReady queues a campaign for the next scheduler sweep.
func (a *API) handleCampaignReady(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	res := a.db.WithContext(r.Context()).Model(&models.Campaign{}).
		Where("id = ? AND status <> ?", campaignID, models.CampaignScheduling).
		Updates(map[string]any{
			"status":            models.CampaignReady,
			"last_error":        "",
			"last_error_kind":   "",
			"failed_lead_index": nil,
		})
	if res.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if res.RowsAffected == 0 {
		if !a.campaignExists(w, r, campaignID) {
			return
		}
		writeError(w, http.StatusConflict, "campaign_busy")
		return
	}

	payload := a.auditContext(r)
	payload["campaign_id"] = campaignID
	payload["change"] = "status"
	payload["status"] = string(models.CampaignReady)
	a.bus.Publish(events.EventCampaignUpdated, payload)

	writeJSON(w, http.StatusOK, map[string]string{"campaign_id": campaignID, "status": string(models.CampaignReady)})
}

func (a *API) handleAccountStatusUpdate(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req accountStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	switch req.Status {
	case models.AccountActive, models.AccountPaused, models.AccountError:
	default:
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}

	res := a.db.WithContext(r.Context()).Model(&models.EmailAccount{}).
		Where("id = ?", accountID).
		Update("status", req.Status)
	if res.Error != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "account_not_found")
		return
	}

	payload := a.auditContext(r)
	payload["account_id"] = accountID
	payload["status"] = string(req.Status)
	a.bus.Publish(events.EventAccountUpdated, payload)

	writeJSON(w, http.StatusOK, map[string]string{"account_id": accountID, "status": string(req.Status)})
}

func (a *API) handleSchedulerRuns(w http.ResponseWriter, r *http.Request) {
	runs := a.scheduler.Runs()
	writeJSON(w, http.StatusOK, map[string]any{
		"in_flight": runs.InFlight(),
		"recent":    runs.Recent(),
	})
}

// campaignExists writes a 404 or 500 and returns false when the campaign
// cannot be found.
func (a *API) campaignExists(w http.ResponseWriter, r *http.Request, campaignID string) bool {
	var count int64
	if err := a.db.WithContext(r.Context()).Model(&models.Campaign{}).Where("id = ?", campaignID).Count(&count).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return false
	}
	if count == 0 {
		writeError(w, http.StatusNotFound, "campaign_not_found")
		return false
	}
	return true
}
