/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/logbuffer"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/timeutil"
)

// WithLogs enables the admin log endpoints backed by buf.
func (a *API) WithLogs(buf *logbuffer.Buffer) *API {
	a.logs = buf
	return a
}

func (a *API) handleSystemLogs(w http.ResponseWriter, r *http.Request) {
	if a.logs == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_disabled")
		return
	}

	q := r.URL.Query()
	limit, _ := pagination(r, 200, 2000)
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		CampaignID: q.Get("campaign_id"),
		Search:     q.Get("search"),
		Limit:      limit,
		Descending: q.Get("order") != "asc",
	}
	if v := q.Get("since"); v != "" {
		since, err := timeutil.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_since")
			return
		}
		params.Since = since
	}

	entries := a.logs.Query(params)
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  entries,
		"count": len(entries),
		"stats": a.logs.Stats(params.CampaignID),
	})
}
