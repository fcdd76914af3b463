package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"freight-backend/internal/app"
	"freight-backend/internal/services"

	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing ledger tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			f := app.NewFactory(env)
			defer f.Close()

			created, err := f.Migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if len(created) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, t := range created {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", t)
			}
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one pass of the expired hold sweeper",
		Long: `Checks reservations still awaiting confirmation past the hold TTL.
Each one is verified with the gateway first: paid holds are authorized,
failed or abandoned ones are released.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			f := app.NewFactory(env)
			defer f.Close()

			svc, err := f.Services(cmd.Context())
			if err != nil {
				return err
			}
			if ttl > 0 {
				svc.Sweeper.TTL = ttl
			}
			report, err := svc.Sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "override HOLD_TTL for this run")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [reference]",
		Short: "Verify a gateway reference and reconcile its payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			f := app.NewFactory(env)
			defer f.Close()

			svc, err := f.Services(cmd.Context())
			if err != nil {
				return err
			}
			out, err := svc.Reconcile.VerifyReference(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("verify %s: %w", args[0], err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func cleanupCmd() *cobra.Command {
	var req services.CleanupRequest
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Undo an unpaid booking attempt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			f := app.NewFactory(env)
			defer f.Close()

			svc, err := f.Services(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Compensator.Cleanup(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&req.PaystackReference, "reference", "", "gateway reference")
	cmd.Flags().StringVar(&req.PurchaseTripID, "purchase-trip", "", "reservation id")
	cmd.Flags().StringVar(&req.Reason, "reason", services.ReasonUserAbandoned, "cleanup reason")
	return cmd
}
