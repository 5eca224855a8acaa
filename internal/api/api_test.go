package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/audit"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/auth"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/db"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/logbuffer"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/models"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/schedule"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduler"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/storage"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/webhooks"
)

var (
	testSecret = []byte("test-secret")
	monday     = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
)

type testEnv struct {
	db      *gorm.DB
	bus     *events.Bus
	api     *API
	router  chi.Router
	exports string
}

func newTestEnv(t *testing.T, preview PreviewConfig) *testEnv {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	bus := events.NewBus()
	sched := scheduler.New(database, scheduling.NewValidator(zerolog.Nop()), nil, bus,
		scheduler.Config{PageSize: 10, InsertBatch: 10, BatchTimeout: 10 * time.Second}, zerolog.Nop())
	sched.SetClock(func() time.Time { return monday })

	dir := t.TempDir()
	exportSvc := schedule.NewExportService(database, storage.NewFilesystemStore(dir, zerolog.Nop()), bus, zerolog.Nop())
	auditSvc := audit.NewService(database, bus, zerolog.Nop())

	webhookSvc := webhooks.NewService(database, bus, zerolog.Nop())

	a := New(database, testSecret, sched, exportSvc, auditSvc, webhookSvc, bus, preview, zerolog.Nop())
	r := chi.NewRouter()
	a.Routes(r)

	return &testEnv{db: database, bus: bus, api: a, router: r, exports: dir}
}

func (e *testEnv) seedCampaign(t *testing.T, id string, leads int) {
	t.Helper()
	off := false
	campaign := models.Campaign{
		ID:                     id,
		Name:                   "Campaign " + id,
		Status:                 models.CampaignReady,
		Timezone:               "UTC",
		EmailsPerDay:           5,
		EmailsPerHour:          2,
		SendingIntervalMinutes: 10,
		StartHour:              "9",
		EndHour:                "17",
		ActiveDays:             []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		JitterEnabled:          &off,
		SubjectTemplate:        "Hi {{first_name}}",
		BodyTemplate:           "Hello",
	}
	if err := e.db.Create(&campaign).Error; err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	acct := models.EmailAccount{ID: id + "-acct", Email: id + "@sender.example.com", Status: models.AccountActive}
	if err := e.db.Create(&acct).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := e.db.Create(&models.CampaignAccount{CampaignID: id, EmailAccountID: acct.ID}).Error; err != nil {
		t.Fatalf("link account: %v", err)
	}
	for i := 0; i < leads; i++ {
		lead := models.Lead{
			ID:         fmt.Sprintf("%s-lead-%d", id, i),
			CampaignID: id,
			Email:      fmt.Sprintf("lead%d@example.com", i),
			FirstName:  fmt.Sprintf("Lead%d", i),
			Status:     models.LeadPending,
			CreatedAt:  monday.Add(time.Duration(i) * time.Second),
		}
		if err := e.db.Create(&lead).Error; err != nil {
			t.Fatalf("create lead: %v", err)
		}
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if len(roles) > 0 {
		token, err := auth.Issue(testSecret, auth.Claims{UserID: "tester", Roles: roles}, time.Hour)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

const previewPolicy = `{"timezone":"UTC","emails_per_day":2,"emails_per_hour":1,"sending_interval_minutes":10,` +
	`"start_hour":9,"end_hour":17,"active_days":["monday","tuesday","wednesday","thursday","friday"],"jitter":{"enabled":false}}`

func TestSchedulePreview(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{})
	body := `{"policy":` + previewPolicy + `,"leads":[{"id":"l0","email":"a@example.com"},{"id":"l1","email":"b@example.com"},{"id":"l2","email":"c@example.com"}],` +
		`"account_ids":["a1","a2"],"start_time":"2026-03-02T09:00:00Z"}`

	rr := env.do(t, http.MethodPost, "/api/v1/schedule/preview", body, auth.RoleViewer)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}

	var resp schedulePreviewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 3 || len(resp.Records) != 3 {
		t.Fatalf("count = %d records = %d, want 3", resp.Count, len(resp.Records))
	}
	if resp.Records[0].SendAt != "2026-03-02T09:00:00.000Z" {
		t.Fatalf("first send_at = %q", resp.Records[0].SendAt)
	}
	if resp.Records[0].AccountID != "a1" || resp.Records[1].AccountID != "a2" || resp.Records[2].AccountID != "a1" {
		t.Fatalf("accounts not rotated: %+v", resp.Records)
	}
	if resp.Policy.EmailsPerDay != 2 {
		t.Fatalf("policy emails_per_day = %d", resp.Policy.EmailsPerDay)
	}
}

func TestSchedulePreviewErrors(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{RatePerSec: 1000, Burst: 100, MaxLeads: 2})

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantError string
	}{
		{
			name:      "empty account pool",
			body:      `{"policy":` + previewPolicy + `,"leads":[{"email":"a@example.com"}],"account_ids":[]}`,
			wantCode:  http.StatusUnprocessableEntity,
			wantError: scheduling.KindInvalidAccountPool,
		},
		{
			name:      "malformed body",
			body:      `{"policy":`,
			wantCode:  http.StatusBadRequest,
			wantError: "invalid_request",
		},
		{
			name:      "bad start time",
			body:      `{"policy":` + previewPolicy + `,"leads":[],"account_ids":["a1"],"start_time":"soon"}`,
			wantCode:  http.StatusBadRequest,
			wantError: "invalid_request",
		},
		{
			name:      "too many leads",
			body:      `{"policy":` + previewPolicy + `,"leads":[{"email":"a"},{"email":"b"},{"email":"c"}],"account_ids":["a1"]}`,
			wantCode:  http.StatusBadRequest,
			wantError: "invalid_request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/v1/schedule/preview", tt.body, auth.RoleViewer)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d body=%s", rr.Code, tt.wantCode, rr.Body.String())
			}
			out := decode(t, rr)
			if out["error"] != tt.wantError {
				t.Fatalf("error = %v, want %s", out["error"], tt.wantError)
			}
			if _, ok := out["lead_index"]; ok {
				t.Fatalf("unexpected lead_index in %v", out)
			}
		})
	}
}

func TestSchedulePreviewRateLimited(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{RatePerSec: 0.001, Burst: 1})
	body := `{"policy":` + previewPolicy + `,"leads":[],"account_ids":["a1"]}`

	if rr := env.do(t, http.MethodPost, "/api/v1/schedule/preview", body, auth.RoleViewer); rr.Code != http.StatusOK {
		t.Fatalf("first status = %d body=%s", rr.Code, rr.Body.String())
	}
	rr := env.do(t, http.MethodPost, "/api/v1/schedule/preview", body, auth.RoleViewer)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{})
	if rr := env.do(t, http.MethodGet, "/api/v1/health", ""); rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/v1/campaigns/c1/schedule", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/v1/campaigns/c1/schedule", "", auth.RoleViewer); rr.Code != http.StatusForbidden {
		t.Fatalf("viewer POST status = %d, want 403", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/v1/audit", "", auth.RoleOperator); rr.Code != http.StatusForbidden {
		t.Fatalf("operator audit status = %d, want 403", rr.Code)
	}
}

func TestScheduleCampaignAndList(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{})
	env.seedCampaign(t, "c1", 3)
	requested := env.bus.Subscribe(events.EventScheduleRequested)

	rr := env.do(t, http.MethodPost, "/api/v1/campaigns/c1/schedule", "", auth.RoleOperator)
	if rr.Code != http.StatusOK {
		t.Fatalf("schedule status = %d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode(t, rr)["scheduled"]; got != float64(3) {
		t.Fatalf("scheduled = %v, want 3", got)
	}

	select {
	case payload := <-requested:
		if payload["campaign_id"] != "c1" || payload["actor"] != "tester" {
			t.Fatalf("requested payload = %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("schedule.requested not published")
	}

	rr = env.do(t, http.MethodGet, "/api/v1/campaigns/c1/schedule?limit=2", "", auth.RoleViewer)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d body=%s", rr.Code, rr.Body.String())
	}
	out := decode(t, rr)
	if out["total"] != float64(3) {
		t.Fatalf("total = %v, want 3", out["total"])
	}
	if emails := out["scheduled_emails"].([]any); len(emails) != 2 {
		t.Fatalf("page size = %d, want 2", len(emails))
	}

	// Nothing pending is left; the campaign is still claimable.
	if rr := env.do(t, http.MethodPost, "/api/v1/campaigns/c1/schedule", `{"start_time":"2026-03-03T09:00:00Z"}`, auth.RoleOperator); rr.Code != http.StatusOK {
		t.Fatalf("reschedule status = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestScheduleCampaignErrors(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{})
	env.seedCampaign(t, "busy", 1)
	if err := env.db.Model(&models.Campaign{}).Where("id = ?", "busy").Update("status", models.CampaignScheduling).Error; err != nil {
		t.Fatalf("mark busy: %v", err)
	}

	tests := []struct {
		target string
		body   string
		code   int
		err    string
	}{
		{"/api/v1/campaigns/missing/schedule", "", http.StatusNotFound, "campaign_not_found"},
		{"/api/v1/campaigns/busy/schedule", "", http.StatusConflict, "campaign_busy"},
		{"/api/v1/campaigns/busy/schedule", `{"start_time":"later"}`, http.StatusBadRequest, "invalid_start_time"},
		{"/api/v1/campaigns/missing/schedule", "}", http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		rr := env.do(t, http.MethodPost, tt.target, tt.body, auth.RoleOperator)
		if rr.Code != tt.code {
			t.Fatalf("%s %q: status = %d, want %d body=%s", tt.target, tt.body, rr.Code, tt.code, rr.Body.String())
		}
		if got := decode(t, rr)["error"]; got != tt.err {
			t.Fatalf("%s %q: error = %v, want %s", tt.target, tt.body, got, tt.err)
		}
	}

	if rr := env.do(t, http.MethodGet, "/api/v1/campaigns/missing/schedule", "", auth.RoleViewer); rr.Code != http.StatusNotFound {
		t.Fatalf("list missing status = %d, want 404", rr.Code)
	}
}

func TestScheduleExportAndPublish(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{})
	env.seedCampaign(t, "c1", 2)
	if rr := env.do(t, http.MethodPost, "/api/v1/campaigns/c1/schedule", "", auth.RoleOperator); rr.Code != http.StatusOK {
		t.Fatalf("schedule status = %d body=%s", rr.Code, rr.Body.String())
	}

	rr := env.do(t, http.MethodGet, "/api/v1/campaigns/c1/schedule/export?format=csv", "", auth.RoleViewer)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "campaign-c1-schedule.csv") {
		t.Fatalf("disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	if lines := strings.Count(strings.TrimSpace(rr.Body.String()), "\n") + 1; lines != 3 {
		t.Fatalf("csv lines = %d, want 3:\n%s", lines, rr.Body.String())
	}

	if rr := env.do(t, http.MethodGet, "/api/v1/campaigns/c1/schedule/export?format=pdf", "", auth.RoleViewer); rr.Code != http.StatusBadRequest {
		t.Fatalf("pdf status = %d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/v1/campaigns/c1/schedule/export?format=ics", "", auth.RoleOperator)
	if rr.Code != http.StatusCreated {
		t.Fatalf("publish status = %d body=%s", rr.Code, rr.Body.String())
	}
	key, _ := decode(t, rr)["key"].(string)
	if !strings.HasPrefix(key, "exports/c1/") || !strings.HasSuffix(key, ".ics") {
		t.Fatalf("key = %q", key)
	}
	if _, err := storage.NewFilesystemStore(env.exports, zerolog.Nop()).Get(context.Background(), key); err != nil {
		t.Fatalf("published export not found: %v", err)
	}
}

func TestCampaignPolicyUpdate(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{})
	env.seedCampaign(t, "c1", 0)
	updated := env.bus.Subscribe(events.EventCampaignUpdated)

	body := `{"timezone":"Mars/Olympus","emails_per_day":20,"emails_per_hour":4,"sending_interval_minutes":15,` +
		`"start_hour":"8","end_hour":18,"active_days":["monday","funday"],"jitter":{"enabled":true,"max_minutes":2}}`
	rr := env.do(t, http.MethodPut, "/api/v1/campaigns/c1/policy", body, auth.RoleOperator)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}

	var resp policyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stored.Timezone != "Mars/Olympus" {
		t.Fatalf("stored timezone = %q", resp.Stored.Timezone)
	}
	if resp.Effective.Timezone != "UTC" {
		t.Fatalf("effective timezone = %q, want UTC", resp.Effective.Timezone)
	}
	if len(resp.Repairs) != 2 {
		t.Fatalf("repairs = %+v, want timezone and active_days", resp.Repairs)
	}

	var campaign models.Campaign
	if err := env.db.First(&campaign, "id = ?", "c1").Error; err != nil {
		t.Fatalf("load campaign: %v", err)
	}
	if campaign.EmailsPerDay != 20 || campaign.StartHour != "8" || campaign.EndHour != "18" {
		t.Fatalf("campaign not updated: %+v", campaign)
	}

	select {
	case payload := <-updated:
		if payload["campaign_id"] != "c1" {
			t.Fatalf("payload = %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("campaign.updated not published")
	}

	if rr := env.do(t, http.MethodPut, "/api/v1/campaigns/missing/policy", body, auth.RoleOperator); rr.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", rr.Code)
	}
}

func TestCampaignReady(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{})
	env.seedCampaign(t, "c1", 0)
	idx := 4
	if err := env.db.Model(&models.Campaign{}).Where("id = ?", "c1").Updates(map[string]any{
		"status":            models.CampaignFailed,
		"last_error":        "boom",
		"failed_lead_index": idx,
	}).Error; err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if rr := env.do(t, http.MethodPost, "/api/v1/campaigns/c1/ready", "", auth.RoleOperator); rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	var campaign models.Campaign
	if err := env.db.First(&campaign, "id = ?", "c1").Error; err != nil {
		t.Fatalf("load campaign: %v", err)
	}
	if campaign.Status != models.CampaignReady || campaign.LastError != "" || campaign.FailedLeadIndex != nil {
		t.Fatalf("campaign = %+v", campaign)
	}

	if rr := env.do(t, http.MethodPost, "/api/v1/campaigns/missing/ready", "", auth.RoleOperator); rr.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", rr.Code)
	}
}

func TestAccountStatusUpdate(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{})
	env.seedCampaign(t, "c1", 0)
	updated := env.bus.Subscribe(events.EventAccountUpdated)

	rr := env.do(t, http.MethodPut, "/api/v1/accounts/c1-acct/status", `{"status":"paused"}`, auth.RoleOperator)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	select {
	case payload := <-updated:
		if payload["account_id"] != "c1-acct" || payload["status"] != "paused" {
			t.Fatalf("payload = %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("account.updated not published")
	}

	if rr := env.do(t, http.MethodPut, "/api/v1/accounts/c1-acct/status", `{"status":"gone"}`, auth.RoleOperator); rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid status code = %d, want 400", rr.Code)
	}
	if rr := env.do(t, http.MethodPut, "/api/v1/accounts/nope/status", `{"status":"active"}`, auth.RoleOperator); rr.Code != http.StatusNotFound {
		t.Fatalf("missing account code = %d, want 404", rr.Code)
	}
}

func TestAuditAndRunsEndpoints(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{})
	campaignID := "c1"
	if err := env.api.auditSvc.Log(context.Background(), &models.AuditLog{
		Actor:      "tester",
		CampaignID: &campaignID,
		Action:     models.AuditActionScheduleRequest,
	}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	rr := env.do(t, http.MethodGet, "/api/v1/audit?actor=tester", "", auth.RoleAdmin)
	if rr.Code != http.StatusOK {
		t.Fatalf("audit status = %d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode(t, rr)["total"]; got != float64(1) {
		t.Fatalf("total = %v, want 1", got)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/campaigns/other/audit", "", auth.RoleViewer)
	if got := decode(t, rr)["total"]; got != float64(0) {
		t.Fatalf("other campaign total = %v, want 0", got)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/scheduler/runs", "", auth.RoleViewer)
	if rr.Code != http.StatusOK {
		t.Fatalf("runs status = %d", rr.Code)
	}
	if _, ok := decode(t, rr)["recent"]; !ok {
		t.Fatalf("runs body = %s", rr.Body.String())
	}
}

func TestWebhookEndpoints(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{})
	env.seedCampaign(t, "c1", 0)

	var hits int
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("X-Bob-Event") != webhooks.EventTest {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	rr := env.do(t, http.MethodPost, "/api/v1/webhooks", `{"url":"`+hook.URL+`","campaign_id":"c1","events":["campaign.scheduled"]}`, auth.RoleOperator)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("operator create status = %d, want 403", rr.Code)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad url", `{"url":"ftp://example.com"}`, http.StatusBadRequest},
		{"bad event", `{"url":"https://example.com","events":["show_start"]}`, http.StatusBadRequest},
		{"unknown campaign", `{"url":"https://example.com","campaign_id":"nope"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/v1/webhooks", tt.body, auth.RoleAdmin)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr = env.do(t, http.MethodPost, "/api/v1/webhooks", `{"url":"`+hook.URL+`","campaign_id":"c1","events":["campaign.scheduled"]}`, auth.RoleAdmin)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rr.Code, rr.Body.String())
	}
	created := decode(t, rr)
	id, _ := created["id"].(string)
	if id == "" || created["secret"] == "" || created["events"] != "campaign.scheduled" {
		t.Fatalf("created = %v", created)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/webhooks", "", auth.RoleAdmin)
	if list, _ := decode(t, rr)["webhooks"].([]any); len(list) != 1 {
		t.Fatalf("list = %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/v1/webhooks/"+id+"/test", "", auth.RoleAdmin)
	if rr.Code != http.StatusOK || hits != 1 {
		t.Fatalf("test status = %d hits = %d body=%s", rr.Code, hits, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/v1/webhooks/"+id+"/logs", "", auth.RoleAdmin)
	if logs, _ := decode(t, rr)["logs"].([]any); len(logs) != 1 {
		t.Fatalf("logs = %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodDelete, "/api/v1/webhooks/"+id, "", auth.RoleAdmin)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/v1/webhooks/"+id+"/test", "", auth.RoleAdmin)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("test after delete status = %d, want 404", rr.Code)
	}
}

func TestSystemLogs(t *testing.T) {
	env := newTestEnv(t, PreviewConfig{})

	rr := env.do(t, http.MethodGet, "/api/v1/system/logs", "", auth.RoleAdmin)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status without buffer = %d, want 503", rr.Code)
	}

	logs := logbuffer.New(10)
	env.api.WithLogs(logs)
	log := zerolog.New(logbuffer.NewWriter(logs, nil))
	log.Info().Str("component", "scheduler").Str("campaign_id", "c1").Msg("campaign scheduled")
	log.Error().Str("component", "scheduler").Str("campaign_id", "c2").Msg("campaign scheduling failed")

	rr = env.do(t, http.MethodGet, "/api/v1/system/logs?campaign_id=c2", "", auth.RoleAdmin)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	if body["count"] != float64(1) {
		t.Fatalf("body = %v", body)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/system/logs?since=yesterday", "", auth.RoleAdmin)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad since status = %d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/system/logs", "", auth.RoleOperator)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("operator status = %d, want 403", rr.Code)
	}
}
