package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/config"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/logbuffer"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:           "test",
		HTTPBind:              "127.0.0.1",
		HTTPPort:              0,
		DBBackend:             config.DatabaseSQLite,
		DBDSN:                 filepath.Join(t.TempDir(), "bob.db"),
		JWTSigningKey:         "test-secret",
		SchedulerSpec:         "@every 1h",
		SchedulerPageSize:     100,
		SchedulerInsertBatch:  50,
		SchedulerBatchTimeout: 10 * time.Second,
		PreviewRatePerSec:     10,
		PreviewBurst:          10,
		PreviewMaxLeads:       100,
		ExportBackend:         config.ExportNone,
		EventBus:              config.EventBusMemory,
		InstanceID:            "test",
	}
}

func TestNewServesHealthAndMetrics(t *testing.T) {
	logs := logbuffer.New(100)
	srv, err := New(testConfig(t), zerolog.New(logbuffer.NewWriter(logs, nil)), logs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()

	rr := httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d body=%s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("healthz body = %v", body)
	}
	if _, ok := body["leader"]; ok {
		t.Fatalf("leader reported without leader election: %v", body)
	}

	rr = httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/scheduler/runs", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated api status = %d, want 401", rr.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(logs.Query(logbuffer.QueryParams{Search: "scheduler loop started"})) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler start was not captured in the log buffer")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewExportStore(t *testing.T) {
	cfg := testConfig(t)

	store, err := NewExportStore(context.Background(), cfg, zerolog.Nop())
	if err != nil || store != nil {
		t.Fatalf("none backend = %v, %v; want nil, nil", store, err)
	}

	cfg.ExportBackend = config.ExportFilesystem
	cfg.ExportDir = t.TempDir()
	store, err = NewExportStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("filesystem backend: %v", err)
	}
	if _, ok := store.(*storage.FilesystemStore); !ok {
		t.Fatalf("store = %T, want *storage.FilesystemStore", store)
	}

	cfg.ExportBackend = config.ExportS3
	cfg.S3Bucket = "exports"
	cfg.S3Endpoint = "http://127.0.0.1:9000"
	cfg.S3AccessKeyID = "key"
	cfg.S3SecretAccessKey = "secret"
	cfg.S3UsePathStyle = true
	store, err = NewExportStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("s3 backend: %v", err)
	}
	if got := store.Location("exports/c1/x.csv"); got != "s3://exports/exports/c1/x.csv" {
		t.Fatalf("Location = %q", got)
	}
}

func TestNewBridgeMemory(t *testing.T) {
	bridge, err := newBridge(testConfig(t), events.NewBus(), zerolog.Nop())
	if err != nil || bridge != nil {
		t.Fatalf("memory bus bridge = %v, %v; want nil, nil", bridge, err)
	}
}
