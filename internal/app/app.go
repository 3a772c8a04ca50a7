// Package app wires configuration into stores, the provider client and the
// services shared by the server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/db"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/invoicepdf"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/ledger"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/mailer"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/orange"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/services"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/storage"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/store"
)

// LedgerStore is a ledger that can also be seeded.
type LedgerStore interface {
	ledger.Ledger
	ledger.Seeder
}

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Stores   store.Stores
	Ledger   LedgerStore
	Provider *orange.Client
	Storage  storage.Storage

	Sync       *services.StatusSync
	Settlement *services.SettlementService
	Payments   *services.PaymentService
	Webhooks   *services.WebhookService
	Admin      *services.ProviderAdmin

	mongo *mongo.Client
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	switch cfg.StoreDriver {
	case "memory":
		a.Stores = store.NewMemory()
		a.Ledger = ledger.NewMemory()
		logger.Warn("using in-memory store, data is lost on exit")
	default:
		client, err := db.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		a.mongo = client
		database := client.Database(cfg.MongoDB)
		if err := store.EnsureIndexes(ctx, database); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		l := ledger.NewMongo(database)
		if err := l.EnsureIndexes(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create ledger indexes: %w", err)
		}
		a.Stores = store.NewMongo(database)
		a.Ledger = l
		logger.Info("connected to MongoDB", "db", cfg.MongoDB)
	}

	st, err := storage.FromConfig(ctx, cfg.Storage, cfg.PublicBaseURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Storage = st.Storage

	var mail mailer.Service
	if cfg.SMTP.Enabled() {
		mail = mailer.NewSMTPMailer(cfg.SMTP)
	} else {
		logger.Info("SMTP_HOST not set, receipt emails disabled")
	}

	a.Provider = orange.NewClient(cfg.Provider, a.Stores.State, logger.With("component", "orange"))
	a.Settlement = services.NewSettlementService(services.SettlementDeps{
		Transactions: a.Stores.Transactions,
		Ledger:       a.Ledger,
		Renderer:     invoicepdf.NewRenderer(invoicepdf.NewWkhtmltopdf(cfg.WkhtmltopdfPath)),
		Storage:      a.Storage,
		Mailer:       mail,
		Company:      cfg.Company,
		SMTP:         cfg.SMTP,
		MaxAttempts:  cfg.Settlement.MaxAttempts,
		Lease:        cfg.Settlement.Lease,
		Logger:       logger.With("component", "settlement"),
	})
	a.Sync = services.NewStatusSync(a.Stores.Transactions, a.Settlement.Settle, logger)
	a.Payments = services.NewPaymentService(a.Stores.Transactions, a.Ledger, a.Provider, a.Sync, logger)
	a.Webhooks = services.NewWebhookService(a.Stores.Transactions, a.Stores.Deliveries, a.Sync, logger.With("component", "webhook"))
	a.Admin = services.NewProviderAdmin(a.Provider, a.Stores.State, logger)

	logger.Info("application ready",
		"store", cfg.StoreDriver,
		"storage", st.Driver,
		"provider_active", cfg.Provider.Active,
		"config_version", cfg.Provider.Version,
	)
	return a, nil
}

// Close releases the database connection.
func (a *App) Close() {
	if a.mongo == nil {
		return
	}
	if err := db.Disconnect(a.mongo, 10*time.Second); err != nil {
		a.Logger.Error("error disconnecting from MongoDB", "error", err)
	}
	a.mongo = nil
}
