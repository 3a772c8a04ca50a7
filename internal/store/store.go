package store

import (
	"context"
	"errors"
	"time"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// StatusUpdate carries the provider-derived fields written together with a
// status change.
type StatusUpdate struct {
	Status         models.Status
	ProviderStatus string
	StatusReason   string
	ProviderTxID   string
	CompletedAt    time.Time
	Fields         map[string]any
}

type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Transaction, error)
	GetByPayToken(ctx context.Context, payToken string) (*models.Transaction, error)
	ListByPartner(ctx context.Context, partnerID models.ExternalID) ([]models.Transaction, error)
	ListByInvoice(ctx context.Context, invoiceID models.ExternalID) ([]models.Transaction, error)

	// ApplyStatus writes a non-completed status. Transactions already in a
	// terminal status are left untouched and ok is false.
	ApplyStatus(ctx context.Context, transactionID string, u StatusUpdate) (tx *models.Transaction, ok bool, err error)

	// Complete moves a transaction to completed and opens its settlement. It
	// succeeds for exactly one caller; later callers get ok == false.
	Complete(ctx context.Context, transactionID string, u StatusUpdate) (tx *models.Transaction, ok bool, err error)

	// ClaimSettlement leases an unsettled completed transaction to a single
	// runner. ok is false while another runner holds an unexpired lease.
	// Clearing settlement_lease_until through UpdateFields releases it.
	ClaimSettlement(ctx context.Context, transactionID string, lease time.Duration) (tx *models.Transaction, ok bool, err error)

	UpdateFields(ctx context.Context, transactionID string, fields map[string]any) error
	ListPendingSettlement(ctx context.Context, limit int) ([]models.Transaction, error)
	CountByStatus(ctx context.Context) (map[models.Status]int64, error)
}

type DeliveryStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Record(ctx context.Context, d models.WebhookDelivery) error
}

type ProviderStateStore interface {
	GetState(ctx context.Context, id string) (*models.ProviderState, error)
	LoadToken(ctx context.Context, id string) (string, time.Time, error)
	SaveToken(ctx context.Context, id, clientID string, version int, token string, expiresAt time.Time) error
	SavePublicKey(ctx context.Context, id, clientID string, version int, key, keyID string) error
	SaveWebhookStatus(ctx context.Context, id, clientID string, version int, status string) error
}

// Stores bundles the repositories a backend provides.
type Stores struct {
	Transactions TransactionStore
	Deliveries   DeliveryStore
	State        ProviderStateStore
}
