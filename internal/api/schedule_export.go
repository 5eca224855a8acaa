/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/schedule"
)

// handleScheduleExport streams a campaign's schedule as CSV or iCal.
func (a *API) handleScheduleExport(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	format, err := schedule.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported_format")
		return
	}

	result, err := a.exportSvc.Export(r.Context(), campaignID, format)
	if err != nil {
		a.writeExportError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// handleSchedulePublish writes an export to the configured object store.
func (a *API) handleSchedulePublish(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	format, err := schedule.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported_format")
		return
	}

	result, err := a.exportSvc.Publish(r.Context(), campaignID, format)
	if err != nil {
		a.writeExportError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"campaign_id": campaignID,
		"key":         result.Key,
		"location":    result.Location,
		"rows":        result.Rows,
		"format":      result.Format,
	})
}

func (a *API) writeExportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrCampaignNotFound):
		writeError(w, http.StatusNotFound, "campaign_not_found")
	case errors.Is(err, schedule.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "unsupported_format")
	case errors.Is(err, schedule.ErrNoStore):
		writeError(w, http.StatusServiceUnavailable, "export_storage_disabled")
	default:
		a.logger.Error().Err(err).Msg("schedule export failed")
		writeError(w, http.StatusInternalServerError, "export_failed")
	}
}
