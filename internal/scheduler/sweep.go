/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/config"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/models"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/telemetry"
)

// runHistory is how long finished runs stay in the in-memory history.
const runHistory = 24 * time.Hour

// Run sweeps ready campaigns on the configured cron spec until ctx is
// cancelled. A sweep still in progress when the next one is due is skipped.
func (s *Service) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := c.AddFunc(s.cfg.Spec, func() { s.Sweep(ctx) }); err != nil {
		return err
	}

	s.logger.Info().Str("spec", s.cfg.Spec).Msg("scheduler loop started")
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info().Msg("scheduler loop stopped")
	return ctx.Err()
}

// Sweep schedules every campaign currently marked ready, one at a time, and
// returns how many succeeded.
func (s *Service) Sweep(ctx context.Context) int {
	telemetry.SchedulerTicksTotal.Inc()
	s.runs.Prune(time.Now().Add(-runHistory))

	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("status = ?", models.CampaignReady).
		Order("updated_at ASC").
		Pluck("id", &ids).Error; err != nil {
		s.logger.Error().Err(err).Msg("scheduler failed to load ready campaigns")
		telemetry.SchedulerErrorsTotal.WithLabelValues("load_campaigns").Inc()
		return 0
	}

	succeeded := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.ScheduleCampaign(ctx, id, nil); err != nil {
			if errors.Is(err, ErrCampaignBusy) {
				s.logger.Debug().Str("campaign_id", id).Msg("campaign claimed elsewhere, skipping")
				continue
			}
			s.logger.Warn().Err(err).Str("campaign_id", id).Msg("campaign scheduling failed")
			continue
		}
		succeeded++
	}
	return succeeded
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
