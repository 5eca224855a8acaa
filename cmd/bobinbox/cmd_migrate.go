/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/db"
)

var migrateRepairLeads bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Create or update the BOB Inbox tables.

Campaigns left in "scheduling" by a process that died mid-run are handed
back to the sweep. With --repair-leads, leads marked scheduled that have no
scheduled email are reset to pending.

Examples:
  bobinbox migrate
  bobinbox migrate --repair-leads
`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateRepairLeads, "repair-leads", false, "Reset scheduled leads that have no scheduled email")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Str("backend", string(cfg.DBBackend)).Msg("migrations applied")

	if migrateRepairLeads {
		n, err := db.RepairLeadStatuses(database)
		if err != nil {
			return err
		}
		logger.Info().Int64("leads", n).Msg("lead statuses repaired")
	}
	return nil
}
