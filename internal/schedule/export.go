/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule renders a campaign's scheduled emails as CSV or iCalendar
// and publishes the result to object storage.
package schedule

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/models"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/storage"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/telemetry"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/timeutil"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatICal Format = "ics"
)

var (
	// ErrCampaignNotFound is returned when the campaign does not exist.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrUnsupportedFormat is returned for formats other than csv and ics.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrNoStore is returned by Publish when no object store is configured.
	ErrNoStore = errors.New("export storage not configured")
)

// ParseFormat accepts "csv", "ics" and "ical".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "ics", "ical":
		return FormatICal, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ExportService handles schedule export.
type ExportService struct {
	db     *gorm.DB
	store  storage.ObjectStore
	bus    *events.Bus
	logger zerolog.Logger
	now    func() time.Time
}

// NewExportService creates a new export service. store may be nil, in which
// case Publish returns ErrNoStore.
func NewExportService(db *gorm.DB, store storage.ObjectStore, bus *events.Bus, logger zerolog.Logger) *ExportService {
	return &ExportService{
		db:     db,
		store:  store,
		bus:    bus,
		logger: logger.With().Str("component", "schedule_export").Logger(),
		now:    time.Now,
	}
}

// ExportResult contains encoded export data.
type ExportResult struct {
	Data        []byte
	Filename    string
	ContentType string
	Rows        int
}

// PublishResult describes a stored export.
type PublishResult struct {
	Key      string
	Location string
	Rows     int
	Format   Format
}

// Export renders the campaign's schedule in format.
func (s *ExportService) Export(ctx context.Context, campaignID string, format Format) (*ExportResult, error) {
	switch format {
	case FormatCSV:
		return s.ExportCSV(ctx, campaignID)
	case FormatICal:
		return s.ExportICal(ctx, campaignID)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func (s *ExportService) load(ctx context.Context, campaignID string) (*models.Campaign, []models.ScheduledEmail, error) {
	var campaign models.Campaign
	err := s.db.WithContext(ctx).First(&campaign, "id = ?", campaignID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load campaign: %w", err)
	}

	var emails []models.ScheduledEmail
	if err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("send_at ASC").
		Order("lead_index ASC").
		Find(&emails).Error; err != nil {
		return nil, nil, fmt.Errorf("load scheduled emails: %w", err)
	}
	return &campaign, emails, nil
}

// ExportCSV exports the campaign's scheduled emails as CSV, one row per email
// in send order.
func (s *ExportService) ExportCSV(ctx context.Context, campaignID string) (*ExportResult, error) {
	campaign, emails, err := s.load(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"lead_index", "lead_id", "to_email", "email_account_id", "send_at", "subject", "status"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range emails {
		if err := w.Write([]string{
			strconv.Itoa(e.LeadIndex),
			e.LeadID,
			e.ToEmail,
			e.EmailAccountID,
			timeutil.ToStorageFormat(e.SendAt),
			e.Subject,
			string(e.Status),
		}); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &ExportResult{
		Data:        buf.Bytes(),
		Filename:    fmt.Sprintf("%s-schedule.csv", exportSlug(campaign)),
		ContentType: "text/csv; charset=utf-8",
		Rows:        len(emails),
	}, nil
}

// ExportICal exports the campaign's scheduled emails as an iCalendar feed with
// one VEVENT per email.
func (s *ExportService) ExportICal(ctx context.Context, campaignID string) (*ExportResult, error) {
	campaign, emails, err := s.load(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	stamp := formatICalTime(s.now())

	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("PRODID:-//BOB Inbox//Send Schedule//EN\r\n")
	buf.WriteString(fmt.Sprintf("X-WR-CALNAME:%s Send Schedule\r\n", escapeICalText(campaign.Name)))
	buf.WriteString("CALSCALE:GREGORIAN\r\n")
	buf.WriteString("METHOD:PUBLISH\r\n")

	for _, e := range emails {
		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%s@bobinbox\r\n", e.ID))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", stamp))
		buf.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICalTime(e.SendAt)))
		buf.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICalTime(e.SendAt)))
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(e.Subject)))
		buf.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICalText(fmt.Sprintf("To %s via account %s", e.ToEmail, e.EmailAccountID))))
		buf.WriteString("END:VEVENT\r\n")
	}

	buf.WriteString("END:VCALENDAR\r\n")

	return &ExportResult{
		Data:        buf.Bytes(),
		Filename:    fmt.Sprintf("%s-schedule.ics", exportSlug(campaign)),
		ContentType: "text/calendar; charset=utf-8",
		Rows:        len(emails),
	}, nil
}

// Publish renders an export and stores it under
// exports/<campaign>/<timestamp>.<ext>.
func (s *ExportService) Publish(ctx context.Context, campaignID string, format Format) (*PublishResult, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}

	ctx, span := telemetry.StartSpan(ctx, "schedule", "PublishExport")
	defer span.End()

	result, err := s.Export(ctx, campaignID, format)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	key := fmt.Sprintf("exports/%s/%s.%s", campaignID, s.now().UTC().Format("20060102T150405Z"), format)
	if err := s.store.Put(ctx, key, result.Data, result.ContentType); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("store export: %w", err)
	}

	telemetry.ExportsPublishedTotal.WithLabelValues(string(format)).Inc()
	location := s.store.Location(key)

	s.logger.Info().
		Str("campaign_id", campaignID).
		Str("format", string(format)).
		Str("location", location).
		Int("rows", result.Rows).
		Msg("schedule export published")

	if s.bus != nil {
		s.bus.Publish(events.EventExportPublished, events.Payload{
			"campaign_id": campaignID,
			"format":      string(format),
			"key":         key,
			"location":    location,
			"rows":        result.Rows,
		})
	}

	return &PublishResult{Key: key, Location: location, Rows: result.Rows, Format: format}, nil
}

func exportSlug(c *models.Campaign) string {
	if slug := slugify(c.Name); slug != "" {
		return slug
	}
	return c.ID
}

func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
