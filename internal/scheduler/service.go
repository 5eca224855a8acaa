/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler turns ready campaigns into scheduled emails.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/cache"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/config"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/db"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/models"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduler/state"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/spintax"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/telemetry"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/timeutil"
)

var (
	// ErrCampaignNotFound is returned for an unknown campaign ID.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrCampaignBusy is returned when another run holds the campaign.
	ErrCampaignBusy = errors.New("campaign is already being scheduled")
)

// KindTimeout marks runs that exceeded the batch timeout.
const KindTimeout = "timeout"

// Config bounds one scheduling run.
type Config struct {
	Spec         string        // cron spec for the sweep
	PageSize     int           // leads fetched per page
	InsertBatch  int           // rows per INSERT / UPDATE
	BatchTimeout time.Duration // wall clock bound for one campaign
}

// ConfigFrom extracts the scheduler settings from process configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Spec:         cfg.SchedulerSpec,
		PageSize:     cfg.SchedulerPageSize,
		InsertBatch:  cfg.SchedulerInsertBatch,
		BatchTimeout: cfg.SchedulerBatchTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Spec == "" {
		c.Spec = "@every 30s"
	}
	if c.PageSize <= 0 {
		c.PageSize = 500
	}
	if c.InsertBatch <= 0 {
		c.InsertBatch = 100
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 2 * time.Minute
	}
	return c
}

// Result summarizes a successful run.
type Result struct {
	CampaignID  string              `json:"campaign_id"`
	Scheduled   int                 `json:"scheduled"`
	FirstSendAt *time.Time          `json:"first_send_at,omitempty"`
	LastSendAt  *time.Time          `json:"last_send_at,omitempty"`
	Policy      scheduling.Policy   `json:"-"`
	Repairs     []scheduling.Repair `json:"repairs,omitempty"`
	Duration    time.Duration       `json:"duration"`
}

// Service schedules campaigns against their sending policy.
type Service struct {
	db        *gorm.DB
	validator *scheduling.Validator
	cache     *cache.Cache
	bus       *events.Bus
	runs      *state.Store
	cfg       Config
	now       func() time.Time
	logger    zerolog.Logger
}

// New constructs the scheduler service. c may be nil.
func New(db *gorm.DB, validator *scheduling.Validator, c *cache.Cache, bus *events.Bus, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		db:        db,
		validator: validator,
		cache:     c,
		bus:       bus,
		runs:      state.NewStore(),
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// SetClock replaces time.Now, used when a run has no explicit start.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Runs exposes the run history.
func (s *Service) Runs() *state.Store {
	return s.runs
}

// ScheduleCampaign places every pending lead of a campaign. Rows are written
// in one transaction: on any error nothing is persisted, the campaign is
// marked failed and a schedule.failed event carries the error kind and, when
// known, the failing lead index. start overrides the campaign's start time.
func (s *Service) ScheduleCampaign(ctx context.Context, campaignID string, start *time.Time) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "scheduler", "ScheduleCampaign")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"campaign_id": campaignID})

	began := time.Now()
	if !s.runs.Begin(campaignID, began) {
		return nil, ErrCampaignBusy
	}
	run := state.RecentRun{CampaignID: campaignID, StartedAt: began}
	defer func() {
		run.FinishedAt = time.Now()
		s.runs.Finish(run)
	}()

	campaign, err := s.claim(ctx, campaignID)
	if err != nil {
		run.Outcome = "rejected"
		run.Error = err.Error()
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.schedule(ctx, campaign, start)
	elapsed := time.Since(began)
	telemetry.ScheduleBuildDuration.Observe(elapsed.Seconds())

	if err != nil {
		kind := errorKind(err)
		run.Outcome = "failure"
		run.ErrorKind = kind
		run.Error = err.Error()
		telemetry.RecordError(span, err)
		telemetry.SchedulerRunsTotal.WithLabelValues("failure").Inc()
		telemetry.SchedulerErrorsTotal.WithLabelValues(kind).Inc()
		s.markFailed(ctx, campaign, kind, err)
		return nil, err
	}

	result.Duration = elapsed
	run.Outcome = "success"
	run.Scheduled = result.Scheduled
	telemetry.SchedulerRunsTotal.WithLabelValues("success").Inc()
	telemetry.LeadsScheduledTotal.Add(float64(result.Scheduled))
	telemetry.AddSpanAttributes(span, map[string]any{"scheduled": result.Scheduled})

	payload := events.Payload{
		"campaign_id": campaignID,
		"scheduled":   result.Scheduled,
		"duration_ms": elapsed.Milliseconds(),
	}
	if result.FirstSendAt != nil {
		payload["first_send_at"] = timeutil.ToStorageFormat(*result.FirstSendAt)
		payload["last_send_at"] = timeutil.ToStorageFormat(*result.LastSendAt)
	}
	s.bus.Publish(events.EventCampaignScheduled, payload)

	s.logger.Info().
		Str("campaign_id", campaignID).
		Int("scheduled", result.Scheduled).
		Dur("duration", elapsed).
		Msg("campaign scheduled")

	return result, nil
}

// claim moves the campaign into "scheduling". The conditional update is the
// cross-instance lock.
func (s *Service) claim(ctx context.Context, campaignID string) (*models.Campaign, error) {
	res := s.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND status <> ?", campaignID, models.CampaignScheduling).
		Update("status", models.CampaignScheduling)
	if res.Error != nil {
		return nil, fmt.Errorf("claim campaign: %w", res.Error)
	}

	var campaign models.Campaign
	if err := s.db.WithContext(ctx).First(&campaign, "id = ?", campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if res.RowsAffected == 0 {
		return nil, ErrCampaignBusy
	}
	return &campaign, nil
}

func (s *Service) schedule(ctx context.Context, campaign *models.Campaign, start *time.Time) (*Result, error) {
	policy, repairs := s.policy(ctx, campaign)

	accountIDs, err := s.accountIDs(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	if start == nil {
		start = campaign.StartAt
	}

	alloc := scheduling.NewAllocator(policy,
		scheduling.WithClock(s.now),
		scheduling.WithLogger(s.logger.With().Str("campaign_id", campaign.ID).Logger()))
	placement, err := alloc.Begin(accountIDs, start)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	result := &Result{CampaignID: campaign.ID, Policy: policy, Repairs: repairs}

	err = s.db.WithContext(runCtx).Transaction(func(tx *gorm.DB) error {
		var placed []string

		pending := tx.Model(&models.Lead{}).
			Where("campaign_id = ? AND status = ?", campaign.ID, models.LeadPending).
			Order("created_at ASC").Order("id ASC")

		err := db.FetchPaged(runCtx, pending, s.cfg.PageSize, func(page []models.Lead) error {
			rows := make([]models.ScheduledEmail, 0, len(page))
			for i := range page {
				lead := &page[i]
				rec, err := placement.Place(lead.SchedulingLead())
				if err != nil {
					return err
				}
				rows = append(rows, s.scheduledEmail(campaign, lead, rec))
				placed = append(placed, lead.ID)
			}
			if err := tx.WithContext(runCtx).CreateInBatches(rows, s.cfg.InsertBatch).Error; err != nil {
				return fmt.Errorf("insert scheduled emails: %w", err)
			}

			first, last := rows[0].SendAt, rows[len(rows)-1].SendAt
			if result.FirstSendAt == nil {
				result.FirstSendAt = &first
			}
			result.LastSendAt = &last
			return nil
		})
		if err != nil {
			return err
		}

		// Statuses change only after paging; the page query filters on status.
		if _, err := db.UpdateInBatches(runCtx, tx, &models.Lead{}, placed, s.cfg.InsertBatch,
			map[string]any{"status": models.LeadScheduled}); err != nil {
			return fmt.Errorf("mark leads scheduled: %w", err)
		}
		result.Scheduled = len(placed)

		now := s.now().UTC()
		return tx.Model(&models.Campaign{}).Where("id = ?", campaign.ID).Updates(map[string]any{
			"status":            models.CampaignScheduled,
			"scheduled_at":      now,
			"last_error":        "",
			"last_error_kind":   "",
			"failed_lead_index": nil,
		}).Error
	})
	if err != nil {
		if runCtx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("scheduling exceeded %s after %d leads: %w", s.cfg.BatchTimeout, placement.Placed(), err)
		}
		return nil, err
	}

	return result, nil
}

// policy returns the campaign's validated policy, from cache when possible.
func (s *Service) policy(ctx context.Context, campaign *models.Campaign) (scheduling.Policy, []scheduling.Repair) {
	if cached, ok := s.cache.GetPolicy(ctx, campaign.ID); ok {
		return cached, nil
	}

	policy, repairs := s.validator.Validate(campaign.RawPolicy())
	if err := s.cache.SetPolicy(ctx, campaign.ID, policy); err != nil {
		s.logger.Debug().Err(err).Str("campaign_id", campaign.ID).Msg("failed to cache policy")
	}
	return policy, repairs
}

// accountIDs returns the campaign's active sending accounts in round robin
// order, using cache when available.
func (s *Service) accountIDs(ctx context.Context, campaignID string) ([]string, error) {
	if ids, ok := s.cache.GetCampaignAccounts(ctx, campaignID); ok {
		return ids, nil
	}

	var ids []string
	err := s.db.WithContext(ctx).
		Table("campaign_accounts").
		Joins("JOIN email_accounts ON email_accounts.id = campaign_accounts.email_account_id").
		Where("campaign_accounts.campaign_id = ? AND email_accounts.status = ?", campaignID, models.AccountActive).
		Order("campaign_accounts.position ASC").
		Order("campaign_accounts.email_account_id ASC").
		Pluck("campaign_accounts.email_account_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load campaign accounts: %w", err)
	}

	if len(ids) > 0 {
		if err := s.cache.SetCampaignAccounts(ctx, campaignID, ids); err != nil {
			s.logger.Debug().Err(err).Str("campaign_id", campaignID).Msg("failed to cache account pool")
		}
	}
	return ids, nil
}

func (s *Service) scheduledEmail(campaign *models.Campaign, lead *models.Lead, rec scheduling.Record) models.ScheduledEmail {
	fields := lead.Fields()
	return models.ScheduledEmail{
		ID:             uuid.NewString(),
		CampaignID:     campaign.ID,
		LeadID:         lead.ID,
		EmailAccountID: rec.AccountID,
		LeadIndex:      rec.Index,
		ToEmail:        lead.Email,
		Subject:        spintax.Render(campaign.SubjectTemplate, "subject:"+lead.ID, fields),
		Body:           spintax.Render(campaign.BodyTemplate, "body:"+lead.ID, fields),
		SendAt:         rec.SendAt.UTC(),
		Status:         models.ScheduledEmailPending,
	}
}

// markFailed records the failure on the campaign and announces it. It runs
// detached from ctx, which may already be past its deadline.
func (s *Service) markFailed(ctx context.Context, campaign *models.Campaign, kind string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	updates := map[string]any{
		"status":            models.CampaignFailed,
		"last_error":        cause.Error(),
		"last_error_kind":   kind,
		"failed_lead_index": nil,
	}
	payload := events.Payload{
		"campaign_id": campaign.ID,
		"error_kind":  kind,
		"error":       cause.Error(),
	}
	if idx, ok := scheduling.LeadIndex(cause); ok {
		updates["failed_lead_index"] = idx
		payload["lead_index"] = idx
	}

	if err := s.db.WithContext(ctx).Model(&models.Campaign{}).Where("id = ?", campaign.ID).Updates(updates).Error; err != nil {
		s.logger.Error().Err(err).Str("campaign_id", campaign.ID).Msg("failed to record scheduling failure")
	}

	s.bus.Publish(events.EventScheduleFailed, payload)

	s.logger.Warn().
		Err(cause).
		Str("campaign_id", campaign.ID).
		Str("kind", kind).
		Msg("campaign scheduling failed")
}

// errorKind extends scheduling.Kind with the run timeout.
func errorKind(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return scheduling.Kind(err)
}

// Preview schedules leads without touching the database. The returned
// policy is the validated form of raw.
func (s *Service) Preview(ctx context.Context, raw scheduling.RawPolicy, leads []scheduling.Lead, accountIDs []string, start *time.Time) ([]scheduling.Record, scheduling.Policy, error) {
	_, span := telemetry.StartSpan(ctx, "scheduler", "Preview")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"leads": len(leads), "accounts": len(accountIDs)})

	policy, _ := s.validator.Validate(raw)
	alloc := scheduling.NewAllocator(policy, scheduling.WithClock(s.now))

	run, err := alloc.Begin(accountIDs, start)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, policy, err
	}

	records := make([]scheduling.Record, 0, len(leads))
	for i, lead := range leads {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, policy, err
			}
		}
		rec, err := run.Place(lead)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, policy, err
		}
		records = append(records, rec)
	}
	return records, policy, nil
}
