package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
)

const samplePlan = `
start: 2026-03-02T08:00:00Z
accounts: [a1, a2]
policy:
  timezone: UTC
  emails_per_day: 50
  emails_per_hour: 10
  sending_interval_minutes: 15
  start_hour: "9"
  end_hour: 17
  active_days: [monday, tuesday, wednesday, thursday, friday]
  jitter: {enabled: false}
leads:
  - {id: l1, email: ada@example.com}
  - {id: l2, email: bob@example.com}
  - {id: l3, email: cy@example.com}
`

func writePlan(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

func TestLoadPlanAndSchedule(t *testing.T) {
	p, err := loadPlan(writePlan(t, samplePlan))
	if err != nil {
		t.Fatalf("loadPlan: %v", err)
	}
	if len(p.Leads) != 3 || len(p.Accounts) != 2 {
		t.Fatalf("plan = %+v", p)
	}
	start, err := p.startTime()
	if err != nil || start == nil {
		t.Fatalf("startTime: %v %v", start, err)
	}

	policy := scheduling.Validate(p.Policy, nil)
	if policy.Window.StartHour != 9 || policy.Window.EndHour != 17 {
		t.Fatalf("window = %+v", policy.Window)
	}
	if policy.Jitter.Enabled {
		t.Fatalf("jitter should be disabled")
	}

	records, err := scheduling.NewAllocator(policy).ScheduleEmails(p.Leads, p.Accounts, start)
	if err != nil {
		t.Fatalf("ScheduleEmails: %v", err)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !records[0].SendAt.Equal(want) {
		t.Fatalf("first send = %s, want %s", records[0].SendAt, want)
	}
	if records[1].AccountID != "a2" || records[2].AccountID != "a1" {
		t.Fatalf("accounts = %s %s", records[1].AccountID, records[2].AccountID)
	}

	var buf bytes.Buffer
	if err := writeRecordsTable(&buf, policy, records); err != nil {
		t.Fatalf("writeRecordsTable: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "ada@example.com") || !strings.Contains(out, "Mon 2026-03-02 09:00") {
		t.Fatalf("table output:\n%s", out)
	}

	buf.Reset()
	if err := writeRecordsJSON(&buf, policy, records); err != nil {
		t.Fatalf("writeRecordsJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"count": 3`) {
		t.Fatalf("json output:\n%s", buf.String())
	}
}

func TestLoadPlanErrors(t *testing.T) {
	if _, err := loadPlan(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := loadPlan(writePlan(t, "leads: {not: [a list")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestReadLeadsCSV(t *testing.T) {
	in := "email, id, company\nada@example.com, l1, Acme\nbob@example.com,,Globex\n"
	leads, err := readLeadsCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("readLeadsCSV: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("got %d leads", len(leads))
	}
	if leads[0].ID != "l1" || leads[0].Email != "ada@example.com" || leads[0].Fields["company"] != "Acme" {
		t.Fatalf("lead 0 = %+v", leads[0])
	}
	if leads[1].ID != "row-3" {
		t.Fatalf("lead 1 id = %q, want row-3", leads[1].ID)
	}

	if _, err := readLeadsCSV(strings.NewReader("name\nada\n")); err == nil {
		t.Fatalf("expected error without email column")
	}
}

func TestValidatePlanPolicyReportsEachRepairOnce(t *testing.T) {
	var out bytes.Buffer
	policy := validatePlanPolicy(scheduling.RawPolicy{
		StartHour:              scheduling.Hour(17),
		EndHour:                scheduling.Hour(9),
		SendingIntervalMinutes: 1,
	}, &out)

	if policy.Window.StartHour != 9 || policy.Window.EndHour != 17 {
		t.Fatalf("window = %+v, want 9-17", policy.Window)
	}
	if n := strings.Count(out.String(), "sending_interval"); n != 1 {
		t.Fatalf("interval repair printed %d times, want 1:\n%s", n, out.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	for _, line := range lines {
		if !strings.HasPrefix(line, "policy repair: ") {
			t.Fatalf("unexpected output line %q", line)
		}
	}
}
