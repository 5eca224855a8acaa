/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/scheduling"
)

var (
	previewFile     string
	previewLeadsCSV string
	previewJSON     bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview a send schedule from a plan file",
	Long: `Place leads under a sending policy without a database or server.

The plan file is YAML:

  start: 2026-03-02T08:00:00Z
  accounts: [acct-1, acct-2]
  policy:
    timezone: Europe/Rome
    emails_per_day: 50
    emails_per_hour: 10
    sending_interval_minutes: 15
    start_hour: 9
    end_hour: 17
    active_days: [monday, tuesday, wednesday, thursday, friday]
    jitter: {enabled: true, max_minutes: 3}
  leads:
    - {id: l1, email: ada@example.com}

With --leads, leads are read from a CSV file instead.

Examples:
  bobinbox preview --file plan.yaml
  bobinbox preview --file plan.yaml --leads leads.csv --json
`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVarP(&previewFile, "file", "f", "", "Plan file (required)")
	previewCmd.Flags().StringVar(&previewLeadsCSV, "leads", "", "CSV file of leads, replaces the plan's leads")
	previewCmd.Flags().BoolVar(&previewJSON, "json", false, "Print JSON instead of a table")
	_ = previewCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	// stdout carries the schedule, so logs go to stderr.
	log := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger().Level(zerolog.WarnLevel)

	p, err := loadPlan(previewFile)
	if err != nil {
		return err
	}
	if previewLeadsCSV != "" {
		f, err := os.Open(previewLeadsCSV)
		if err != nil {
			return fmt.Errorf("open leads: %w", err)
		}
		defer f.Close()
		if p.Leads, err = readLeadsCSV(f); err != nil {
			return err
		}
	}

	start, err := p.startTime()
	if err != nil {
		return fmt.Errorf("invalid start: %w", err)
	}

	policy := validatePlanPolicy(p.Policy, cmd.ErrOrStderr())

	records, err := scheduling.NewAllocator(policy, scheduling.WithLogger(log)).ScheduleEmails(p.Leads, p.Accounts, start)
	if err != nil {
		if idx, ok := scheduling.LeadIndex(err); ok {
			return fmt.Errorf("%s at lead %d: %w", scheduling.Kind(err), idx, err)
		}
		return fmt.Errorf("%s: %w", scheduling.Kind(err), err)
	}

	if previewJSON {
		return writeRecordsJSON(cmd.OutOrStdout(), policy, records)
	}
	return writeRecordsTable(cmd.OutOrStdout(), policy, records)
}
