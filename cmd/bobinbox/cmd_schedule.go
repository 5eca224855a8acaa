/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/db"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/events"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduler"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
	"github.com/Acidsyd/BOB-inbox-sub010/internal/timeutil"
)

var (
	scheduleCampaignID string
	scheduleStart      string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Schedule one campaign now",
	Long: `Run the scheduler for a single campaign without starting the server.

The campaign must be in the ready state. Its pending leads are placed under
the campaign's sending policy and written in one transaction.

Examples:
  bobinbox schedule --campaign 6f1c...
  bobinbox schedule --campaign 6f1c... --start 2026-03-02T08:00:00Z
`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCampaignID, "campaign", "", "Campaign ID (required)")
	scheduleCmd.Flags().StringVar(&scheduleStart, "start", "", "Start time override (RFC 3339)")
	_ = scheduleCmd.MarkFlagRequired("campaign")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	start, err := timeutil.ParseOptional(scheduleStart)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := scheduler.New(database, scheduling.NewValidator(logger), nil, events.NewBus(), scheduler.ConfigFrom(cfg), logger)
	result, err := svc.ScheduleCampaign(ctx, scheduleCampaignID, start)
	if err != nil {
		if idx, ok := scheduling.LeadIndex(err); ok {
			return fmt.Errorf("schedule campaign (lead %d): %w", idx, err)
		}
		return fmt.Errorf("schedule campaign: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "campaign %s: %d emails scheduled in %s\n", result.CampaignID, result.Scheduled, result.Duration)
	if result.FirstSendAt != nil && result.LastSendAt != nil {
		fmt.Fprintf(out, "first send %s, last send %s\n",
			timeutil.ToStorageFormat(*result.FirstSendAt), timeutil.ToStorageFormat(*result.LastSendAt))
	}
	for _, r := range result.Repairs {
		fmt.Fprintf(out, "policy repair: %s %q -> %q (%s)\n", r.Field, r.From, r.To, r.Reason)
	}
	return nil
}
