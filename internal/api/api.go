/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes campaign scheduling over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/audit"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/auth"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/logbuffer"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/schedule"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduler"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/webhooks"
)

// PreviewConfig limits the preview endpoint.
type PreviewConfig struct {
	RatePerSec float64
	Burst      int
	MaxLeads   int
}

// API exposes HTTP handlers.
type API struct {
	db             *gorm.DB
	jwtSecret      []byte
	scheduler      *scheduler.Service
	exportSvc      *schedule.ExportService
	auditSvc       *audit.Service
	webhookSvc     *webhooks.Service
	logs           *logbuffer.Buffer
	bus            *events.Bus
	previewLimiter *rate.Limiter
	previewMax     int
	logger         zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, sched *scheduler.Service, exportSvc *schedule.ExportService, auditSvc *audit.Service, webhookSvc *webhooks.Service, bus *events.Bus, preview PreviewConfig, logger zerolog.Logger) *API {
	if preview.RatePerSec <= 0 {
		preview.RatePerSec = 2
	}
	if preview.Burst <= 0 {
		preview.Burst = 5
	}
	if preview.MaxLeads <= 0 {
		preview.MaxLeads = 5000
	}

	return &API{
		db:             db,
		jwtSecret:      jwtSecret,
		scheduler:      sched,
		exportSvc:      exportSvc,
		auditSvc:       auditSvc,
		webhookSvc:     webhookSvc,
		bus:            bus,
		previewLimiter: rate.NewLimiter(rate.Limit(preview.RatePerSec), preview.Burst),
		previewMax:     preview.MaxLeads,
		logger:         logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers all API routes.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Post("/schedule/preview", a.handleSchedulePreview)

			pr.Route("/campaigns/{campaignID}", func(r chi.Router) {
				r.With(auth.RequireRole(auth.RoleOperator)).Put("/policy", a.handleCampaignPolicyUpdate)
				r.With(auth.RequireRole(auth.RoleOperator)).Post("/ready", a.handleCampaignReady)

				r.Route("/schedule", func(r chi.Router) {
					r.With(auth.RequireRole(auth.RoleOperator, auth.RoleViewer)).Get("/", a.handleScheduleList)
					r.With(auth.RequireRole(auth.RoleOperator)).Post("/", a.handleScheduleCampaign)
					r.With(auth.RequireRole(auth.RoleOperator, auth.RoleViewer)).Get("/export", a.handleScheduleExport)
					r.With(auth.RequireRole(auth.RoleOperator)).Post("/export", a.handleSchedulePublish)
				})

				r.With(auth.RequireRole(auth.RoleOperator, auth.RoleViewer)).Get("/audit", a.handleCampaignAuditList)
			})

			pr.With(auth.RequireRole(auth.RoleOperator)).Put("/accounts/{accountID}/status", a.handleAccountStatusUpdate)

			pr.With(auth.RequireRole(auth.RoleOperator, auth.RoleViewer)).Get("/scheduler/runs", a.handleSchedulerRuns)
			pr.With(auth.RequireRole(auth.RoleAdmin)).Get("/audit", a.handleAuditList)

			pr.With(auth.RequireRole(auth.RoleAdmin)).Get("/system/logs", a.handleSystemLogs)

			pr.Route("/webhooks", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				r.Get("/", a.handleWebhookList)
				r.Post("/", a.handleWebhookCreate)
				r.Delete("/{webhookID}", a.handleWebhookDelete)
				r.Post("/{webhookID}/test", a.handleWebhookTest)
				r.Get("/{webhookID}/logs", a.handleWebhookLogs)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(a.jwtSecret)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// auditContext extracts caller and request info for audit logging.
func (a *API) auditContext(r *http.Request) events.Payload {
	return events.Payload{
		"actor":      auth.Actor(r.Context()),
		"ip_address": r.RemoteAddr,
		"user_agent": r.UserAgent(),
	}
}

// pagination reads limit and offset, clamping limit to [1, max].
func pagination(r *http.Request, def, max int) (int, int) {
	limit, offset := def, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
