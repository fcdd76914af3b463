package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	intconfig "freight-backend/internal/config"
	"freight-backend/internal/utils"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "freightctl",
		Short:         "Operator tools for the freight payment ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(cleanupCmd())
	return rootCmd
}

func loadEnv() (intconfig.Env, error) {
	env, err := intconfig.LoadEnv()
	if err != nil {
		return intconfig.Env{}, err
	}
	utils.SetLogLevel(env.LogLevel)
	return env, nil
}
