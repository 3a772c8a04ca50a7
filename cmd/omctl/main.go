package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/app"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
)

var Version = "dev"

var (
	outputFormat string
	verbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "omctl",
		Short:         "omctl - operator tool for the Orange Money payment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "Output format (json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")

	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(publicKeyCmd())
	rootCmd.AddCommand(registerWebhookCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(settleCmd())
	rootCmd.AddCommand(regenerateInvoiceCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(newIDCmd())
	rootCmd.AddCommand(apiTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withApp loads the configuration, builds the application and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	if err := checkOutputFormat(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, newLogger())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
