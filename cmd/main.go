package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/app"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/handlers"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/services"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Settlement retries
	pool := worker.NewPool(256, a.Settlement.Settle, logger.With("component", "settlement_pool"))
	pool.Start(cfg.Settlement.Workers)
	settlementWorker := services.NewSettlementWorker(a.Stores.Transactions, pool, cfg.Settlement.Interval, logger)
	go settlementWorker.Run(ctx)

	routerCfg := handlers.RouterConfig{
		Payments:    handlers.NewPaymentHandler(a.Payments, logger),
		Webhooks:    handlers.NewWebhookHandler(a.Webhooks, cfg.WebhookToken, logger),
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	}
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "local" {
		routerCfg.UploadDir = cfg.Storage.LocalDir
		routerCfg.UploadPrefix = cfg.Storage.LocalURLPrefix
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      handlers.NewRouter(routerCfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server running", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Error("settlement pool shutdown", "error", err)
	}
}
