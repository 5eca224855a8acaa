/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		// Campaigns and their recipients
		&models.Campaign{},
		&models.Lead{},

		// Sending accounts
		&models.EmailAccount{},
		&models.CampaignAccount{},

		// Scheduler output
		&models.ScheduledEmail{},

		&models.AuditLog{},

		// Outbound notifications
		&models.WebhookTarget{},
		&models.WebhookLog{},
	); err != nil {
		return err
	}

	if err := applyPostgresCampaignLimitGuard(database); err != nil {
		return err
	}
	if err := normalizeLegacyCampaignStatuses(database); err != nil {
		return err
	}
	if err := releaseInterruptedRuns(database); err != nil {
		return err
	}

	return nil
}

// applyPostgresCampaignLimitGuard rejects negative sending limits at the
// database. Zero still means "use the default" and is repaired at scheduling
// time.
func applyPostgresCampaignLimitGuard(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
ALTER TABLE campaigns DROP CONSTRAINT IF EXISTS chk_campaign_limits_non_negative;
ALTER TABLE campaigns ADD CONSTRAINT chk_campaign_limits_non_negative
  CHECK (emails_per_day >= 0 AND emails_per_hour >= 0 AND sending_interval_minutes >= 0);
`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres campaign limit guard: %w", err)
	}

	return nil
}

// normalizeLegacyCampaignStatuses maps statuses written by older importers
// onto the current lifecycle.
func normalizeLegacyCampaignStatuses(database *gorm.DB) error {
	if err := database.Exec("UPDATE campaigns SET status = ? WHERE LOWER(TRIM(status)) IN ?", models.CampaignReady, []string{"active", "queued", "pending"}).Error; err != nil {
		return fmt.Errorf("normalize legacy ready campaign status: %w", err)
	}
	if err := database.Exec("UPDATE campaigns SET status = ? WHERE status IS NULL OR TRIM(status) = ''", models.CampaignDraft).Error; err != nil {
		return fmt.Errorf("normalize empty campaign status: %w", err)
	}
	return nil
}

// releaseInterruptedRuns hands campaigns left in "scheduling" by a process
// that died mid-run back to the sweep. Their transaction never committed, so
// no scheduled emails exist for them.
func releaseInterruptedRuns(database *gorm.DB) error {
	if err := database.Model(&models.Campaign{}).
		Where("status = ?", models.CampaignScheduling).
		Update("status", models.CampaignReady).Error; err != nil {
		return fmt.Errorf("release interrupted scheduling runs: %w", err)
	}
	return nil
}

// RepairLeadStatuses resets leads marked scheduled that have no scheduled
// email row, which can only happen after manual edits. It returns the number
// of leads reset.
func RepairLeadStatuses(database *gorm.DB) (int64, error) {
	res := database.Model(&models.Lead{}).
		Where("status = ?", models.LeadScheduled).
		Where("NOT EXISTS (SELECT 1 FROM scheduled_emails se WHERE se.lead_id = leads.id)").
		Update("status", models.LeadPending)
	if res.Error != nil {
		return 0, fmt.Errorf("repair lead statuses: %w", res.Error)
	}
	return res.RowsAffected, nil
}
