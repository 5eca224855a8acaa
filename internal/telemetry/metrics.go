/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scheduler metrics.
var (
	SchedulerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bobinbox_scheduler_ticks_total",
		Help: "Scheduler sweeps started.",
	})

	SchedulerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bobinbox_scheduler_runs_total",
		Help: "Campaign scheduling runs by outcome.",
	}, []string{"outcome"})

	SchedulerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bobinbox_scheduler_errors_total",
		Help: "Scheduling errors by kind.",
	}, []string{"kind"})

	ScheduleBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bobinbox_scheduler_build_duration_seconds",
		Help:    "Time spent scheduling one campaign.",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	LeadsScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bobinbox_scheduler_leads_scheduled_total",
		Help: "Leads given a send time and account.",
	})

	PolicyRepairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bobinbox_policy_repairs_total",
		Help: "Sending policy fields repaired during validation.",
	}, []string{"field"})
)

// Database metrics.
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bobinbox_db_query_duration_seconds",
		Help:    "Database operation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bobinbox_db_errors_total",
		Help: "Database operation errors.",
	}, []string{"operation", "table"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bobinbox_db_connections_active",
		Help: "Open database connections in use.",
	})
)

// API metrics.
var (
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bobinbox_api_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bobinbox_api_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bobinbox_api_active_connections",
		Help: "In-flight HTTP requests.",
	})

	APIRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bobinbox_api_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	}, []string{"endpoint"})
)

// Cluster metrics.
var (
	LeaderElectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bobinbox_leader_status",
		Help: "1 when this instance holds leadership.",
	}, []string{"instance_id"})

	LeaderElectionChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bobinbox_leader_changes_total",
		Help: "Leadership transitions observed by this instance.",
	}, []string{"transition"})

	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bobinbox_cache_requests_total",
		Help: "Cache lookups by kind and result.",
	}, []string{"kind", "result"})

	EventsForwardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bobinbox_events_forwarded_total",
		Help: "Events exchanged with the distributed bus.",
	}, []string{"transport", "direction"})

	ExportsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bobinbox_export_published_total",
		Help: "Schedule exports written to object storage.",
	}, []string{"format"})

	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bobinbox_webhook_deliveries_total",
		Help: "Webhook delivery attempts by event and result.",
	}, []string{"event", "result"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
