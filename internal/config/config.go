/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// EventBusBackend selects how events leave the process.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusRedis  EventBusBackend = "redis"
	EventBusNATS   EventBusBackend = "nats"
)

// ExportBackend selects where published schedule exports are written.
type ExportBackend string

const (
	ExportNone       ExportBackend = "none"
	ExportFilesystem ExportBackend = "filesystem"
	ExportS3         ExportBackend = "s3"
)

// CronParser accepts standard five-field specs plus descriptors like "@every 30s".
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string

	// Campaign scheduler
	SchedulerSpec         string        // cron spec for the sweep over ready campaigns
	SchedulerPageSize     int           // leads fetched per page
	SchedulerInsertBatch  int           // rows per INSERT / UPDATE batch
	SchedulerBatchTimeout time.Duration // wall clock bound for one campaign

	// Preview endpoint
	PreviewRatePerSec float64
	PreviewBurst      int
	PreviewMaxLeads   int

	// Export publishing
	ExportBackend ExportBackend
	ExportDir     string

	// S3 Object Storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO
	S3Prefix          string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Multi-instance configuration
	LeaderElectionEnabled bool
	CacheEnabled          bool
	CacheTTL              time.Duration
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	InstanceID            string
	EventBus              EventBusBackend
	NATSURL               string

	// In-memory log ring served to admins
	LogBufferSize int

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"BOB_ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"BOB_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"BOB_HTTP_PORT", "PORT"}, 8080),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"BOB_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:         getEnvAny([]string{"BOB_DB_DSN", "DATABASE_URL"}, ""),
		JWTSigningKey: getEnvAny([]string{"BOB_JWT_SIGNING_KEY"}, ""),

		SchedulerSpec:         getEnvAny([]string{"BOB_SCHEDULER_SPEC"}, "@every 30s"),
		SchedulerPageSize:     getEnvIntAny([]string{"BOB_SCHEDULER_PAGE_SIZE"}, 500),
		SchedulerInsertBatch:  getEnvIntAny([]string{"BOB_SCHEDULER_INSERT_BATCH"}, 100),
		SchedulerBatchTimeout: time.Duration(getEnvIntAny([]string{"BOB_SCHEDULER_BATCH_TIMEOUT_SECONDS"}, 120)) * time.Second,

		PreviewRatePerSec: getEnvFloatAny([]string{"BOB_PREVIEW_RATE_PER_SEC"}, 2),
		PreviewBurst:      getEnvIntAny([]string{"BOB_PREVIEW_BURST"}, 5),
		PreviewMaxLeads:   getEnvIntAny([]string{"BOB_PREVIEW_MAX_LEADS"}, 5000),

		ExportBackend: ExportBackend(getEnvAny([]string{"BOB_EXPORT_BACKEND"}, string(ExportNone))),
		ExportDir:     getEnvAny([]string{"BOB_EXPORT_DIR"}, "./exports"),

		S3AccessKeyID:     getEnvAny([]string{"BOB_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"BOB_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"BOB_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"BOB_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"BOB_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"BOB_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),
		S3Prefix:          getEnvAny([]string{"BOB_S3_PREFIX"}, ""),

		TracingEnabled:    getEnvBoolAny([]string{"BOB_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"BOB_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"BOB_TRACING_SAMPLE_RATE"}, 1.0),

		LeaderElectionEnabled: getEnvBoolAny([]string{"BOB_LEADER_ELECTION_ENABLED"}, false),
		CacheEnabled:          getEnvBoolAny([]string{"BOB_CACHE_ENABLED"}, false),
		CacheTTL:              time.Duration(getEnvIntAny([]string{"BOB_CACHE_TTL_SECONDS"}, 300)) * time.Second,
		RedisAddr:             getEnvAny([]string{"BOB_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:         getEnvAny([]string{"BOB_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:               getEnvIntAny([]string{"BOB_REDIS_DB"}, 0),
		InstanceID:            getEnvAny([]string{"BOB_INSTANCE_ID"}, ""),
		EventBus:              EventBusBackend(getEnvAny([]string{"BOB_EVENT_BUS"}, string(EventBusMemory))),
		NATSURL:               getEnvAny([]string{"BOB_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),

		LogBufferSize: getEnvIntAny([]string{"BOB_LOG_BUFFER_SIZE"}, 5000),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("BOB_DB_DSN or DATABASE_URL must be provided")
	}

	switch cfg.EventBus {
	case EventBusMemory, EventBusRedis, EventBusNATS:
	default:
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}

	switch cfg.ExportBackend {
	case ExportNone, ExportFilesystem:
	case ExportS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("BOB_S3_BUCKET must be provided when BOB_EXPORT_BACKEND=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported export backend %q", cfg.ExportBackend)
	}

	if _, err := CronParser.Parse(cfg.SchedulerSpec); err != nil {
		return nil, fmt.Errorf("invalid BOB_SCHEDULER_SPEC %q: %w", cfg.SchedulerSpec, err)
	}

	if cfg.SchedulerPageSize <= 0 {
		return nil, fmt.Errorf("BOB_SCHEDULER_PAGE_SIZE must be positive, got %d", cfg.SchedulerPageSize)
	}
	if cfg.SchedulerInsertBatch <= 0 {
		return nil, fmt.Errorf("BOB_SCHEDULER_INSERT_BATCH must be positive, got %d", cfg.SchedulerInsertBatch)
	}
	if cfg.SchedulerBatchTimeout <= 0 {
		return nil, fmt.Errorf("BOB_SCHEDULER_BATCH_TIMEOUT_SECONDS must be positive")
	}

	if cfg.InstanceID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "bobinbox"
		}
		cfg.InstanceID = host
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	if c.JWTSigningKey == "" {
		return fmt.Errorf("BOB_JWT_SIGNING_KEY must be provided")
	}
	if strings.EqualFold(c.Environment, "production") && len(c.JWTSigningKey) < 32 {
		return fmt.Errorf("BOB_JWT_SIGNING_KEY must be at least 32 bytes in production")
	}
	return nil
}

// NeedsRedis reports whether any enabled feature talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.LeaderElectionEnabled || c.CacheEnabled || c.EventBus == EventBusRedis
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"SCHEDULER_CRON":          "use BOB_SCHEDULER_SPEC",
		"JWT_SECRET":              "use BOB_JWT_SIGNING_KEY",
		"EMAILS_PER_DAY":          "sending limits are per campaign; set them on the campaign",
		"TRACING_ENABLED":         "use BOB_TRACING_ENABLED",
		"OTLP_ENDPOINT":           "use BOB_OTLP_ENDPOINT",
		"LEADER_ELECTION":         "use BOB_LEADER_ELECTION_ENABLED",
		"BOB_SCHEDULER_LOOKAHEAD": "scheduling is no longer windowed; remove it",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
