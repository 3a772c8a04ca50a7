package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/app"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/middleware"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/services"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/worker"
)

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Fetch an access token to check the provider credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				check, err := a.Admin.TestConnection(ctx)
				if err != nil {
					return err
				}
				if err := printResult(cmd.OutOrStdout(), check); err != nil {
					return err
				}
				if !check.OK {
					return fmt.Errorf("connection test failed")
				}
				return nil
			})
		},
	}
}

func publicKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "public-key",
		Short: "Fetch and store the provider public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				key, err := a.Admin.FetchPublicKey(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), key)
			})
		},
	}
}

func registerWebhookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register-webhook",
		Short: "Register OM_CALLBACK_URL as the merchant callback",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				summary, err := a.Admin.RegisterWebhook(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), map[string]string{
					"callback_url": a.Config.Provider.CallbackURL,
					"status":       summary,
				})
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [transaction_id]",
		Short: "Re-check a transaction against the provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tx, err := a.Payments.RefreshStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), tx)
			})
		},
	}
}

func settleCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "settle [transaction_id]",
		Short: "Settle one completed transaction, or every pending settlement",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if len(args) == 1 {
					if err := a.Settlement.Settle(ctx, args[0]); err != nil {
						return err
					}
					tx, err := a.Payments.Transaction(ctx, args[0])
					if err != nil {
						return err
					}
					return printResult(cmd.OutOrStdout(), tx)
				}

				pool := worker.NewPool(256, a.Settlement.Settle, a.Logger)
				pool.Start(workers)
				w := services.NewSettlementWorker(a.Stores.Transactions, pool, time.Minute, a.Logger)
				queued, err := w.RunOnce(ctx)
				if shutdownErr := pool.Shutdown(ctx); err == nil {
					err = shutdownErr
				}
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), map[string]int{"queued": queued})
			})
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Concurrent settlements")
	return cmd
}

func regenerateInvoiceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate-invoice [transaction_id]",
		Short: "Render and store a fresh receipt PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				tx, err := a.Settlement.RegenerateInvoice(ctx, args[0])
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), map[string]any{
					"transaction_id": tx.TransactionID,
					"url_facture":    tx.URLFacture,
					"filename":       tx.FactureFilename,
					"size":           tx.FactureSize,
				})
			})
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count transactions by outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				stats, err := a.Payments.Stats(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newIDCmd() *cobra.Command {
	var (
		invoice string
		amount  string
	)
	cmd := &cobra.Command{
		Use:   "new-id",
		Short: "Print a transaction id and reference for an invoice",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputFormat(); err != nil {
				return err
			}
			m, err := models.ParseMoney(amount)
			if err != nil {
				return err
			}
			now := time.Now()
			id := models.ExternalID(invoice)
			return printResult(cmd.OutOrStdout(), map[string]string{
				"transaction_id": services.NewTransactionID(id, m, now),
				"reference":      services.NewReference(id, now),
			})
		},
	}
	cmd.Flags().StringVar(&invoice, "invoice", "", "Invoice id")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount")
	_ = cmd.MarkFlagRequired("invoice")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func apiTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "api-token",
		Short: "Issue a bearer token for the protected API routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputFormat(); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := middleware.IssueJWT(cfg.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), map[string]string{
				"token":      token,
				"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "backoffice", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
