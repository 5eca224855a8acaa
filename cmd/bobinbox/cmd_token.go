/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Acidsyd/BOB-inbox-sub010/internal/auth"
)

var (
	tokenUser  string
	tokenRoles []string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token",
	Long: `Sign a JWT with BOB_JWT_SIGNING_KEY for calling the API.

Examples:
  bobinbox token --user ops --role operator
  bobinbox token --role admin --ttl 1h
`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User ID (random when empty)")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{auth.RoleViewer}, "Roles: admin, operator, viewer")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	for _, role := range tokenRoles {
		switch role {
		case auth.RoleAdmin, auth.RoleOperator, auth.RoleViewer:
		default:
			return fmt.Errorf("unknown role %q", role)
		}
	}
	if tokenUser == "" {
		tokenUser = uuid.NewString()
	}

	token, err := auth.Issue([]byte(cfg.JWTSigningKey), auth.Claims{UserID: tokenUser, Roles: tokenRoles}, tokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
