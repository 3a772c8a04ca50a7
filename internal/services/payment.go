package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/apperr"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/ledger"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/orange"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/store"
)

const defaultDescription = "Payment via Orange Money"

type InitiateRequest struct {
	TransactionID string            `json:"transaction_id" validate:"required,max=128"`
	InvoiceID     models.ExternalID `json:"facture_id" validate:"required"`
	PartnerID     models.ExternalID `json:"partner_id" validate:"required"`
	PhoneNumber   string            `json:"phoneNumber" validate:"required,msisdn"`
	Amount        models.Money      `json:"amount"`
	Description   string            `json:"description" validate:"max=255"`
	Currency      string            `json:"currency" validate:"omitempty,len=3"`
	Reference     string            `json:"reference" validate:"max=128"`
	SuccessURL    string            `json:"success_url" validate:"omitempty,url"`
	CancelURL     string            `json:"cancel_url" validate:"omitempty,url"`
	Metadata      map[string]any    `json:"metadata"`
}

type InitiateResult struct {
	Transaction *models.Transaction
	// Existing is set when the transaction id was already known and no new
	// payment order was created.
	Existing bool
}

type PaymentService struct {
	transactions store.TransactionStore
	ledger       ledger.Ledger
	provider     Provider
	sync         *StatusSync
	logger       *slog.Logger
	now          func() time.Time
}

func NewPaymentService(transactions store.TransactionStore, l ledger.Ledger, provider Provider, sync *StatusSync, logger *slog.Logger) *PaymentService {
	return &PaymentService{
		transactions: transactions,
		ledger:       l,
		provider:     provider,
		sync:         sync,
		logger:       logger,
		now:          time.Now,
	}
}

// NewTransactionID builds the id clients use when they have none:
// OM-{invoice}-{unix}-{amount}.
func NewTransactionID(invoiceID models.ExternalID, amount models.Money, now time.Time) string {
	return fmt.Sprintf("OM-%s-%d-%d", invoiceID, now.Unix(), amount.IntPart())
}

func NewReference(invoiceID models.ExternalID, now time.Time) string {
	return fmt.Sprintf("REF-%s-%d", invoiceID, now.Unix())
}

func (s *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.InvalidErr(missingFieldsMessage)
	}

	cfg := s.provider.Config()
	if !cfg.Ready() {
		return nil, apperr.InvalidErr("Orange Money configuration not found")
	}

	existing, err := s.transactions.GetByTransactionID(ctx, req.TransactionID)
	if err == nil {
		s.logger.InfoContext(ctx, "transaction already initiated", "transaction_id", req.TransactionID)
		return &InitiateResult{Transaction: existing, Existing: true}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up transaction %s: %w", req.TransactionID, err)
	}

	invoice, err := s.ledger.GetInvoice(ctx, req.InvoiceID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, apperr.InvalidErr("Invoice not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice %s: %w", req.InvoiceID, err)
	}
	if _, err := s.ledger.GetCustomer(ctx, req.PartnerID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, apperr.InvalidErr("Partner not found")
		}
		return nil, fmt.Errorf("failed to fetch partner %s: %w", req.PartnerID, err)
	}
	merchantCode, err := orange.NormalizeMerchantCode(cfg.MerchantCode)
	if err != nil {
		return nil, apperr.InvalidErr(err.Error())
	}

	now := s.now().UTC()
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = cfg.DefaultCurrency
	}
	reference := req.Reference
	if reference == "" {
		reference = NewReference(req.InvoiceID, now)
	}
	description := req.Description
	if description == "" {
		description = defaultDescription
	}
	successURL := req.SuccessURL
	if successURL == "" {
		successURL = cfg.SuccessURL + req.TransactionID
	}

	metadata := map[string]any{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["transaction_id"] = req.TransactionID
	metadata["facture_id"] = req.InvoiceID.String()
	metadata["partner_id"] = req.PartnerID.String()

	qr, err := s.provider.GenerateQRCode(ctx, orange.QRRequest{
		Amount:     req.Amount.Decimal,
		Currency:   currency,
		Reference:  reference,
		SuccessURL: successURL,
		CancelURL:  req.CancelURL,
		Metadata:   metadata,
	})
	if err != nil {
		if errors.Is(err, orange.ErrInvalidMerchantCode) {
			return nil, apperr.InvalidErr(err.Error())
		}
		s.logger.ErrorContext(ctx, "qrcode generation failed", "transaction_id", req.TransactionID, "error", err)
		return nil, apperr.UpstreamErr("Failed to create Orange Money payment order", err)
	}

	tx := &models.Transaction{
		TransactionID:   req.TransactionID,
		OrangeID:        qr.ID,
		QRID:            qr.ID,
		PayToken:        qr.ID,
		Reference:       reference,
		Type:            models.TypeMerchantPayment,
		Amount:          req.Amount,
		Currency:        currency,
		CustomerMSISDN:  NormalizeMSISDN(req.PhoneNumber),
		MerchantCode:    merchantCode,
		Status:          models.StatusInitiated,
		Description:     description,
		QRCodeBase64:    qr.Base64,
		QRCodeURL:       qr.DeepLink,
		DeepLink:        qr.DeepLink,
		DeepLinkOM:      qr.DeepLinkOM,
		DeepLinkMaxit:   qr.DeepLinkMaxit,
		ShortLink:       qr.ShortLink,
		ValiditySeconds: qr.Validity,
		ValidFrom:       qr.ValidFrom,
		ValidUntil:      qr.ValidUntil,
		PaymentURL:      qr.PaymentURL(),
		SuccessURL:      successURL,
		CancelURL:       req.CancelURL,
		CallbackURL:     cfg.CallbackURL,
		Metadata:        metadata,
		OrangeResponse:  string(qr.Raw),
		InvoiceID:       invoice.ID,
		PartnerID:       req.PartnerID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.transactions.Create(ctx, tx); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			winner, getErr := s.transactions.GetByTransactionID(ctx, req.TransactionID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load concurrent transaction %s: %w", req.TransactionID, getErr)
			}
			return &InitiateResult{Transaction: winner, Existing: true}, nil
		}
		return nil, fmt.Errorf("failed to save transaction %s: %w", req.TransactionID, err)
	}

	s.logger.InfoContext(ctx, "payment initiated",
		"transaction_id", tx.TransactionID,
		"qr_id", tx.QRID,
		"amount", tx.Amount.String(),
		"invoice_id", tx.InvoiceID,
	)
	return &InitiateResult{Transaction: tx}, nil
}

type TokenLookup struct {
	Transaction *models.Transaction
	// Live is the provider's answer, nil when it could not be asked.
	Live *orange.TransactionStatus
}

// ByPayToken returns the transaction behind a pay token, refreshed from the
// provider when the provider transaction id is known.
func (s *PaymentService) ByPayToken(ctx context.Context, payToken string) (*TokenLookup, error) {
	tx, err := s.transactions.GetByPayToken(ctx, payToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFoundErr("Payment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pay token %s: %w", payToken, err)
	}

	live, refreshed := s.poll(ctx, tx)
	return &TokenLookup{Transaction: refreshed, Live: live}, nil
}

// RefreshStatus asks the provider for the current status of a transaction and
// records it when it changed.
func (s *PaymentService) RefreshStatus(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.transactions.GetByTransactionID(ctx, transactionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFoundErr("Transaction not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", transactionID, err)
	}
	_, refreshed := s.poll(ctx, tx)
	return refreshed, nil
}

// poll returns the stored transaction unchanged whenever the provider cannot
// be asked or does not answer.
func (s *PaymentService) poll(ctx context.Context, tx *models.Transaction) (*orange.TransactionStatus, *models.Transaction) {
	if tx.ProviderTxID == "" {
		s.logger.DebugContext(ctx, "no provider transaction id, skipping status check", "transaction_id", tx.TransactionID)
		return nil, tx
	}
	if !s.provider.Config().Ready() {
		return nil, tx
	}

	live, err := s.provider.TransactionStatus(ctx, tx.ProviderTxID)
	if err != nil {
		s.logger.WarnContext(ctx, "status check failed", "transaction_id", tx.TransactionID, "error", err)
		return nil, tx
	}

	mapped := models.MapProviderStatus(live.Status)
	if mapped == tx.Status && live.Status == tx.ProviderStatus {
		return live, tx
	}
	res, err := s.sync.Apply(ctx, tx, store.StatusUpdate{
		Status:         mapped,
		ProviderStatus: live.Status,
		StatusReason:   live.Reason,
		Fields:         map[string]any{"orange_response": string(live.Raw)},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to apply polled status", "transaction_id", tx.TransactionID, "error", err)
		return live, tx
	}
	return live, res.Transaction
}

func (s *PaymentService) Transaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.transactions.GetByTransactionID(ctx, transactionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFoundErr("Transaction not found")
	}
	return tx, err
}

// PartnerTransactions lists a customer's transactions, newest first.
func (s *PaymentService) PartnerTransactions(ctx context.Context, partnerID models.ExternalID) ([]models.Transaction, error) {
	if _, err := s.ledger.GetCustomer(ctx, partnerID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, apperr.NotFoundErr("Partner not found")
		}
		return nil, fmt.Errorf("failed to fetch partner %s: %w", partnerID, err)
	}
	txs, err := s.transactions.ListByPartner(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for partner %s: %w", partnerID, err)
	}
	return txs, nil
}

// PartnerStats are a customer's figures across all their transactions.
// SuccessRate is the percentage of completed ones.
type PartnerStats struct {
	TransactionCount int          `json:"transaction_count"`
	TotalAmount      models.Money `json:"total_amount"`
	SuccessRate      float64      `json:"success_rate"`
}

// SummarizePartner totals the completed amounts of txs.
func SummarizePartner(txs []models.Transaction) PartnerStats {
	stats := PartnerStats{TransactionCount: len(txs)}
	successful := 0
	for _, tx := range txs {
		if tx.Status == models.StatusCompleted {
			successful++
			stats.TotalAmount = stats.TotalAmount.Add(tx.Amount)
		}
	}
	if len(txs) > 0 {
		stats.SuccessRate = math.Round(float64(successful)/float64(len(txs))*10000) / 100
	}
	return stats
}

type InvoiceSummary struct {
	InvoiceID      models.ExternalID `json:"facture_id"`
	Number         string            `json:"number"`
	Currency       string            `json:"currency"`
	AmountTotal    models.Money      `json:"amount_total"`
	AmountPaid     models.Money      `json:"amount_paid"`
	AmountResidual models.Money      `json:"amount_residual"`
	PaymentState   string            `json:"payment_state"`
	Coverage       string            `json:"coverage"`
	Transactions   int               `json:"transactions"`
	Completed      int               `json:"completed"`
}

// InvoiceSummary compares what completed transactions collected with the
// invoice total.
func (s *PaymentService) InvoiceSummary(ctx context.Context, invoiceID models.ExternalID) (*InvoiceSummary, error) {
	inv, err := s.ledger.GetInvoice(ctx, invoiceID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, apperr.NotFoundErr("Invoice not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice %s: %w", invoiceID, err)
	}
	txs, err := s.transactions.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for invoice %s: %w", invoiceID, err)
	}

	sum := &InvoiceSummary{
		InvoiceID:      inv.ID,
		Number:         inv.Number,
		Currency:       inv.Currency,
		AmountTotal:    inv.AmountTotal,
		AmountResidual: inv.AmountResidual,
		PaymentState:   inv.PaymentState,
		Transactions:   len(txs),
	}
	for _, tx := range txs {
		if tx.Status == models.StatusCompleted {
			sum.Completed++
			sum.AmountPaid = sum.AmountPaid.Add(tx.Amount)
		}
	}
	sum.Coverage = coverage(sum.AmountPaid, inv.AmountTotal)
	return sum, nil
}

func coverage(paid, total models.Money) string {
	switch {
	case !paid.IsPositive():
		return models.CoverageNone
	case paid.LessThan(total.Decimal):
		return models.CoveragePartial
	case paid.Equal(total.Decimal):
		return models.CoverageFull
	default:
		return models.CoverageOverpaid
	}
}

// Stats counts transactions; failed includes cancelled ones.
func (s *PaymentService) Stats(ctx context.Context) (*models.TransactionStats, error) {
	counts, err := s.transactions.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	stats := &models.TransactionStats{}
	for status, n := range counts {
		stats.Total += n
		switch status {
		case models.StatusCompleted:
			stats.Successful += n
		case models.StatusFailed, models.StatusCancelled:
			stats.Failed += n
		default:
			stats.Pending += n
		}
	}
	return stats, nil
}
