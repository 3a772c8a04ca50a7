package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/apperr"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/orange"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/store"
)

var ErrInvalidJSON = apperr.InvalidErr("Invalid JSON")

// WebhookPayload is the notification body pushed by Orange Money.
type WebhookPayload struct {
	Amount        json.RawMessage     `json:"amount"`
	Customer      models.Counterparty `json:"customer"`
	Partner       models.Counterparty `json:"partner"`
	Channel       string              `json:"channel"`
	PaymentMethod string              `json:"paymentMethod"`
	Status        string              `json:"status"`
	TransactionID string              `json:"transactionId"`
	Type          string              `json:"type"`
	Metadata      json.RawMessage     `json:"metadata"`
	PerformedAt   string              `json:"performedAt"`
	WhenCompleted string              `json:"when_completed"`
}

type WebhookResult struct {
	TransactionID string
	Status        models.Status
	Duplicate     bool
	Ignored       bool
}

type WebhookService struct {
	transactions store.TransactionStore
	deliveries   store.DeliveryStore
	sync         *StatusSync
	logger       *slog.Logger
	now          func() time.Time
}

func NewWebhookService(transactions store.TransactionStore, deliveries store.DeliveryStore, sync *StatusSync, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		transactions: transactions,
		deliveries:   deliveries,
		sync:         sync,
		logger:       logger,
		now:          time.Now,
	}
}

// DeliveryKey identifies a notification body; identical redeliveries share it.
func DeliveryKey(raw []byte) string {
	sum := sha256.Sum256(bytes.TrimSpace(raw))
	return hex.EncodeToString(sum[:])
}

// parseMetadata accepts the metadata object or the same object encoded as a
// JSON string.
func parseMetadata(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, err
		}
		if strings.TrimSpace(encoded) == "" {
			return map[string]any{}, nil
		}
		raw = []byte(encoded)
	}
	meta := map[string]any{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func metadataString(meta map[string]any, key string) string {
	switch v := meta[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func (s *WebhookService) Handle(ctx context.Context, raw []byte) (*WebhookResult, error) {
	var p WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.WarnContext(ctx, "invalid webhook body", "error", err)
		return nil, ErrInvalidJSON
	}

	meta, err := parseMetadata(p.Metadata)
	if err != nil {
		s.logger.WarnContext(ctx, "invalid webhook metadata", "error", err)
		return nil, apperr.InvalidErr("Invalid metadata JSON")
	}
	transactionID := metadataString(meta, "transaction_id")
	if transactionID == "" {
		s.logger.WarnContext(ctx, "webhook without metadata.transaction_id", "provider_transaction_id", p.TransactionID)
		return nil, apperr.InvalidErr("transaction_id missing in metadata")
	}

	log := s.logger.With("transaction_id", transactionID, "provider_status", p.Status)
	log.InfoContext(ctx, "webhook received", "provider_transaction_id", p.TransactionID, "channel", p.Channel)

	tx, err := s.transactions.GetByTransactionID(ctx, transactionID)
	if errors.Is(err, store.ErrNotFound) {
		log.WarnContext(ctx, "webhook for unknown transaction")
		return nil, apperr.InvalidErr("Transaction not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", transactionID, err)
	}

	key := DeliveryKey(raw)
	seen, err := s.deliveries.Seen(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check delivery %s: %w", key, err)
	}
	if seen {
		log.InfoContext(ctx, "duplicate webhook delivery", "delivery_key", key)
		return &WebhookResult{TransactionID: transactionID, Status: tx.Status, Duplicate: true}, nil
	}

	u := store.StatusUpdate{
		Status:         models.MapProviderStatus(p.Status),
		ProviderStatus: strings.ToUpper(strings.TrimSpace(p.Status)),
		ProviderTxID:   p.TransactionID,
		Fields:         webhookFields(p, raw),
	}
	when := p.PerformedAt
	if when == "" {
		when = p.WhenCompleted
	}
	if t := orange.ParseTime(when); t != nil {
		u.CompletedAt = *t
	}

	res, err := s.sync.Apply(ctx, tx, u)
	if err != nil {
		return nil, err
	}

	if err := s.deliveries.Record(ctx, models.WebhookDelivery{
		Key:           key,
		TransactionID: transactionID,
		Status:        u.ProviderStatus,
		ReceivedAt:    s.now().UTC(),
	}); err != nil {
		log.ErrorContext(ctx, "failed to record webhook delivery", "error", err)
	}

	return &WebhookResult{
		TransactionID: transactionID,
		Status:        res.Transaction.Status,
		Ignored:       res.Ignored,
	}, nil
}

func webhookFields(p WebhookPayload, raw []byte) map[string]any {
	fields := map[string]any{"webhook_data": string(raw)}
	if p.Channel != "" {
		fields["channel"] = p.Channel
	}
	if p.PaymentMethod != "" {
		fields["payment_method"] = p.PaymentMethod
	}
	if p.Type != "" {
		fields["transaction_type"] = models.TransactionType(p.Type)
	}
	if p.Customer.ID != "" {
		fields["customer"] = p.Customer
	}
	if p.Partner.ID != "" {
		fields["partner"] = p.Partner
	}
	return fields
}
