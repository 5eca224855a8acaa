/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, storage, the scheduler and the HTTP API
// into one process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/api"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/audit"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/cache"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/config"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/db"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/eventbus"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/leadership"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/logbuffer"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/schedule"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduler"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/storage"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/telemetry"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/version"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/webhooks"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db                   *gorm.DB
	cache                *cache.Cache
	api                  *api.API
	scheduler            *scheduler.Service
	leaderAwareScheduler *scheduler.LeaderAwareScheduler
	bridge               *eventbus.Bridge
	bus                  *events.Bus
	auditSvc             *audit.Service
	webhookSvc           *webhooks.Service
	logs                 *logbuffer.Buffer

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. logs, when non-nil, is
// served on the admin log endpoint.
func New(cfg *config.Config, logger zerolog.Logger, logs *logbuffer.Buffer) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware) // Add OpenTelemetry tracing
	router.Use(telemetry.MetricsMiddleware) // Add Prometheus metrics
	router.Use(middleware.Timeout(cfg.SchedulerBatchTimeout + 30*time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
		logs:   logs,
	}

	if err := srv.initDependencies(); err != nil {
		srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	if err := srv.startBackgroundWorkers(); err != nil {
		srv.Close()
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := db.Migrate(database); err != nil {
		return err
	}

	// Redis cache for campaign policies and account pools
	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		cacheCfg.AccountsTTL = s.cfg.CacheTTL
		cacheCfg.PolicyTTL = s.cfg.CacheTTL
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = entityCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	validator := scheduling.NewValidator(s.logger)
	s.scheduler = scheduler.New(database, validator, s.cache, s.bus, scheduler.ConfigFrom(s.cfg), s.logger)

	// Setup leader-aware scheduler if leader election is enabled
	if s.cfg.LeaderElectionEnabled {
		electionConfig := leadership.DefaultConfig()
		electionConfig.RedisAddr = s.cfg.RedisAddr
		electionConfig.RedisPassword = s.cfg.RedisPassword
		electionConfig.RedisDB = s.cfg.RedisDB
		electionConfig.InstanceID = s.cfg.InstanceID

		election, err := leadership.NewElection(electionConfig, s.logger)
		if err != nil {
			return fmt.Errorf("create leader election: %w", err)
		}

		s.leaderAwareScheduler = scheduler.NewLeaderAware(s.scheduler, election, s.logger)
		s.DeferClose(func() error { return s.leaderAwareScheduler.Stop() })

		s.logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Str("instance_id", electionConfig.InstanceID).
			Msg("leader election enabled for scheduler")
	}

	bridge, err := newBridge(s.cfg, s.bus, s.logger)
	if err != nil {
		return err
	}
	if bridge != nil {
		s.bridge = bridge
		s.DeferClose(bridge.Close)
	}

	store, err := NewExportStore(context.Background(), s.cfg, s.logger)
	if err != nil {
		return err
	}
	exportSvc := schedule.NewExportService(database, store, s.bus, s.logger)

	// Audit service records scheduling and configuration changes
	s.auditSvc = audit.NewService(database, s.bus, s.logger)

	// Webhooks notify external systems of scheduling outcomes
	s.webhookSvc = webhooks.NewService(database, s.bus, s.logger)

	s.api = api.New(database, []byte(s.cfg.JWTSigningKey), s.scheduler, exportSvc, s.auditSvc, s.webhookSvc, s.bus, api.PreviewConfig{
		RatePerSec: s.cfg.PreviewRatePerSec,
		Burst:      s.cfg.PreviewBurst,
		MaxLeads:   s.cfg.PreviewMaxLeads,
	}, s.logger).WithLogs(s.logs)

	return nil
}

// newBridge connects the configured distributed event transport. It returns
// nil for the in-memory bus.
func newBridge(cfg *config.Config, bus *events.Bus, logger zerolog.Logger) (*eventbus.Bridge, error) {
	nodeID := eventbus.NodeIDFor(cfg.InstanceID)
	switch cfg.EventBus {
	case config.EventBusNATS:
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Name = "bobinbox-" + cfg.InstanceID
		return eventbus.NewNATSBridge(natsCfg, bus, nodeID, logger)
	case config.EventBusRedis:
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB
		return eventbus.NewRedisBridge(redisCfg, bus, nodeID, logger)
	default:
		return nil, nil
	}
}

// NewExportStore builds the object store for published exports. It returns
// nil when publishing is disabled.
func NewExportStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.ObjectStore, error) {
	switch cfg.ExportBackend {
	case config.ExportFilesystem:
		logger.Info().Str("dir", cfg.ExportDir).Msg("exports will be written to the filesystem")
		return storage.NewFilesystemStore(cfg.ExportDir, logger), nil
	case config.ExportS3:
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			Prefix:          cfg.S3Prefix,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init s3 export storage: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.bridge != nil {
		if err := s.bridge.Start(ctx); err != nil {
			return fmt.Errorf("start event bridge: %w", err)
		}
	}

	// Start scheduler (leader-aware if configured, otherwise direct)
	if s.leaderAwareScheduler != nil {
		if err := s.leaderAwareScheduler.Start(ctx); err != nil {
			return fmt.Errorf("start leader-aware scheduler: %w", err)
		}
	} else if s.scheduler != nil {
		// Direct scheduler (single instance mode)
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("scheduler loop exited")
			}
		}()
	}

	// Start database metrics updater
	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}

	// Start audit service
	if s.auditSvc != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.auditSvc.Start(ctx)
		}()
	}

	// Start webhook delivery
	if s.webhookSvc != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.webhookSvc.Start(ctx)
		}()
	}

	// Start cache invalidation listener
	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.cache.Listen(ctx, s.bus)
		}()
	}

	return nil
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", telemetry.Handler())
	s.api.Routes(s.router)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": version.Version,
	}

	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = "unreachable"
	}

	// Add leader status if leader election is enabled
	if s.leaderAwareScheduler != nil {
		body["leader"] = s.leaderAwareScheduler.IsLeader()
		body["scheduler_running"] = s.leaderAwareScheduler.Running()
	}
	if s.cache != nil {
		body["cache"] = s.cache.IsAvailable()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
