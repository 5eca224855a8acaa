/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/telemetry"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/timeutil"
)

type schedulePreviewRequest struct {
	Policy     scheduling.RawPolicy `json:"policy"`
	Leads      []scheduling.Lead    `json:"leads"`
	AccountIDs []string             `json:"account_ids"`
	StartTime  string               `json:"start_time"`
}

type schedulePreviewResponse struct {
	Policy  scheduling.RawPolicy `json:"policy"`
	Count   int                  `json:"count"`
	Records []previewRecord      `json:"records"`
}

type previewRecord struct {
	Index     int    `json:"index"`
	LeadID    string `json:"lead_id,omitempty"`
	Email     string `json:"email"`
	AccountID string `json:"account_id"`
	SendAt    string `json:"send_at"`
}

// schedulingError is the body for failed scheduling requests.
type schedulingError struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	LeadIndex *int   `json:"lead_index,omitempty"`
}

func (a *API) handleSchedulePreview(w http.ResponseWriter, r *http.Request) {
	if !a.previewLimiter.Allow() {
		telemetry.APIRateLimitedTotal.WithLabelValues("schedule_preview").Inc()
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limited")
		return
	}

	var req schedulePreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, schedulingError{Error: "invalid_request", Message: "request body must be valid JSON"})
		return
	}
	if len(req.Leads) > a.previewMax {
		writeJSON(w, http.StatusBadRequest, schedulingError{
			Error:   "invalid_request",
			Message: fmt.Sprintf("at most %d leads may be previewed", a.previewMax),
		})
		return
	}

	var start *time.Time
	if req.StartTime != "" {
		t, err := timeutil.Parse(req.StartTime)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, schedulingError{Error: "invalid_request", Message: "start_time: " + err.Error()})
			return
		}
		start = &t
	}

	records, policy, err := a.scheduler.Preview(r.Context(), req.Policy, req.Leads, req.AccountIDs, start)
	if err != nil {
		a.writeSchedulingError(w, err)
		return
	}

	resp := schedulePreviewResponse{
		Policy:  policy.Raw(),
		Count:   len(records),
		Records: make([]previewRecord, len(records)),
	}
	for i, rec := range records {
		resp.Records[i] = previewRecord{
			Index:     rec.Index,
			LeadID:    rec.Lead.ID,
			Email:     rec.Lead.Email,
			AccountID: rec.AccountID,
			SendAt:    timeutil.ToStorageFormat(rec.SendAt),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeSchedulingError maps engine errors onto HTTP responses. Account pool
// and policy errors are the caller's to fix and return 422.
func (a *API) writeSchedulingError(w http.ResponseWriter, err error) {
	body := schedulingError{Error: scheduling.Kind(err), Message: err.Error()}
	if idx, ok := scheduling.LeadIndex(err); ok {
		body.LeadIndex = &idx
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		body.Error = "timeout"
		writeJSON(w, http.StatusGatewayTimeout, body)
	case errors.Is(err, context.Canceled):
		body.Error = "canceled"
		writeJSON(w, http.StatusServiceUnavailable, body)
	case body.Error == scheduling.KindInvalidAccountPool, body.Error == scheduling.KindPolicyUnsatisfiable:
		writeJSON(w, http.StatusUnprocessableEntity, body)
	default:
		a.logger.Error().Err(err).Msg("scheduling failed")
		body.Message = ""
		writeJSON(w, http.StatusInternalServerError, body)
	}
}
