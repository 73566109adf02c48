package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Jung028/donation-platform/internal/config"
	"github.com/Jung028/donation-platform/internal/db"
	"github.com/Jung028/donation-platform/internal/domain"
	"github.com/Jung028/donation-platform/internal/logging"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.AppEnv, "donationctl")

			pool, err := db.NewPool(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.NewMigrator(pool.Pool, logger).Up(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
				return nil
			}
			for _, version := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", version)
			}
			return nil
		},
	}
}

func staleCmd() *cobra.Command {
	var (
		olderThan time.Duration
		output    string
	)

	cmd := &cobra.Command{
		Use:   "stale",
		Short: "List PENDING and PROCESSING donations left behind by a crash",
		Long: `List donations that never reached COMPLETED or FAILED.

A donation stays PROCESSING when the process stopped between the transaction
call and the status write. Check the transaction service before closing it out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, service *domain.DonationService) error {
				donations, err := service.ListStaleDonations(ctx, olderThan)
				if err != nil {
					return err
				}
				return renderDonations(cmd.OutOrStdout(), output, donations)
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 15*time.Minute, "Only list donations not updated for this long")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, json, yaml)")

	return cmd
}

func getCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get [donation-id]",
		Short: "Show a single donation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("donation id must be a positive integer")
			}
			if err := validateOutput(output); err != nil {
				return err
			}
			return withService(cmd.Context(), func(ctx context.Context, service *domain.DonationService) error {
				donation, err := service.GetDonation(ctx, id)
				if err != nil {
					return err
				}
				return renderDonations(cmd.OutOrStdout(), output, []*domain.Donation{donation})
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format (table, json, yaml)")

	return cmd
}

// withService opens the configured Postgres store for a read-only command.
func withService(ctx context.Context, fn func(ctx context.Context, service *domain.DonationService) error) error {
	cfg := config.Load()

	pool, err := db.NewPool(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Read paths never reach the collaborators
	service := domain.NewDonationService(db.NewDonationRepository(pool.Pool), nil, nil, zerolog.Nop(),
		domain.WithTimeouts(domain.Timeouts{Store: cfg.Store.Timeout}))
	return fn(ctx, service)
}
