package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/apperr"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/invoicepdf"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/ledger"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/mailer"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/storage"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/store"
)

var ErrNoLinkedInvoice = errors.New("no linked invoice")

// SettlementDeps groups the collaborators of the completion side effect.
// Renderer, Storage and Mailer are optional.
type SettlementDeps struct {
	Transactions store.TransactionStore
	Ledger       ledger.Ledger
	Renderer     *invoicepdf.Renderer
	Storage      storage.Storage
	Mailer       mailer.Service
	Company      config.Company
	SMTP         config.SMTP
	MaxAttempts  int
	Lease        time.Duration
	Logger       *slog.Logger
}

// SettlementService records the accounting payment for a completed
// transaction, reconciles it with the invoice, then issues the receipt. Each
// step checks what a previous attempt already did, so Settle can be retried.
type SettlementService struct {
	SettlementDeps
	now func() time.Time
}

func NewSettlementService(deps SettlementDeps) *SettlementService {
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = 5
	}
	if deps.Lease <= 0 {
		deps.Lease = 5 * time.Minute
	}
	return &SettlementService{SettlementDeps: deps, now: time.Now}
}

func (s *SettlementService) Settle(ctx context.Context, transactionID string) error {
	tx, err := s.Transactions.GetByTransactionID(ctx, transactionID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFoundErr("Transaction not found")
	}
	if err != nil {
		return fmt.Errorf("failed to fetch transaction %s: %w", transactionID, err)
	}
	if tx.Status != models.StatusCompleted || tx.SettlementState == models.SettlementSettled {
		return nil
	}

	log := s.Logger.With("transaction_id", transactionID)
	tx, claimed, err := s.Transactions.ClaimSettlement(ctx, transactionID, s.Lease)
	if err != nil {
		return fmt.Errorf("failed to claim settlement of %s: %w", transactionID, err)
	}
	if !claimed {
		log.DebugContext(ctx, "settlement already running or done")
		return nil
	}

	if runErr := s.run(ctx, tx, log); runErr != nil {
		attempts := tx.SettlementTries + 1
		state := models.SettlementPending
		if attempts >= s.MaxAttempts {
			state = models.SettlementFailed
		}
		if err := s.Transactions.UpdateFields(ctx, transactionID, map[string]any{
			"settlement_state":       state,
			"settlement_attempts":    attempts,
			"settlement_error":       runErr.Error(),
			"settlement_lease_until": nil,
		}); err != nil {
			log.ErrorContext(ctx, "failed to record settlement failure", "error", err)
		}
		log.WarnContext(ctx, "settlement attempt failed", "attempt", attempts, "state", state, "error", runErr)
		return runErr
	}

	if err := s.Transactions.UpdateFields(ctx, transactionID, map[string]any{
		"settlement_state":       models.SettlementSettled,
		"settlement_error":       "",
		"settlement_lease_until": nil,
	}); err != nil {
		return fmt.Errorf("failed to mark %s settled: %w", transactionID, err)
	}
	log.InfoContext(ctx, "transaction settled")
	return nil
}

func (s *SettlementService) run(ctx context.Context, tx *models.Transaction, log *slog.Logger) error {
	if tx.InvoiceID == "" {
		return ErrNoLinkedInvoice
	}
	inv, err := s.Ledger.GetInvoice(ctx, tx.InvoiceID)
	if err != nil {
		return fmt.Errorf("invoice %s: %w", tx.InvoiceID, err)
	}

	payment, err := s.ensurePayment(ctx, tx, inv, log)
	if err != nil {
		return err
	}
	if payment.State != models.PaymentPosted {
		posted, err := s.Ledger.PostPayment(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to post payment %s: %w", payment.ID, err)
		}
		payment = posted
		log.InfoContext(ctx, "payment posted", "payment_id", payment.ID)
	}
	if tx.PaymentID != payment.ID {
		if err := s.Transactions.UpdateFields(ctx, tx.TransactionID, map[string]any{"payment_id": payment.ID}); err != nil {
			return fmt.Errorf("failed to link payment: %w", err)
		}
		tx.PaymentID = payment.ID
	}

	pairs, err := s.Ledger.Reconcile(ctx, inv.ID, payment.ID)
	if err != nil {
		return fmt.Errorf("failed to reconcile payment %s with invoice %s: %w", payment.ID, inv.ID, err)
	}
	if pairs == 0 {
		log.WarnContext(ctx, "no receivable lines matched", "invoice_id", inv.ID, "payment_id", payment.ID)
	} else {
		log.InfoContext(ctx, "payment reconciled", "invoice_id", inv.ID, "pairs", pairs)
	}

	customer, err := s.Ledger.GetCustomer(ctx, tx.PartnerID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return fmt.Errorf("failed to fetch partner %s: %w", tx.PartnerID, err)
	}

	if tx.URLFacture == "" && s.Renderer != nil {
		if tx, err = s.issueReceipt(ctx, tx, inv, customer); err != nil {
			return err
		}
		log.InfoContext(ctx, "receipt generated", "url", tx.URLFacture, "size", tx.FactureSize)
	}

	if tx.InvoiceEmailedAt == nil && s.Mailer != nil && s.SMTP.Enabled() && customer != nil && customer.Email != "" {
		if err := s.sendReceipt(ctx, tx, customer); err != nil {
			return err
		}
		log.InfoContext(ctx, "receipt emailed", "to", customer.Email)
	}
	return nil
}

func (s *SettlementService) ensurePayment(ctx context.Context, tx *models.Transaction, inv *models.Invoice, log *slog.Logger) (*models.AccountPayment, error) {
	payment, err := s.Ledger.FindPaymentByTransaction(ctx, tx.TransactionID)
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}

	journal, err := s.Ledger.FindCashJournal(ctx)
	if err != nil {
		return nil, fmt.Errorf("cash journal: %w", err)
	}
	method, err := s.Ledger.FindInboundPaymentMethod(ctx)
	if err != nil {
		return nil, fmt.Errorf("inbound payment method: %w", err)
	}

	date := s.now().UTC()
	if tx.CompletedAt != nil {
		date = *tx.CompletedAt
	}
	payment, err = s.Ledger.CreatePayment(ctx, &models.AccountPayment{
		TransactionID:   tx.TransactionID,
		PartnerID:       tx.PartnerID,
		InvoiceID:       inv.ID,
		JournalID:       journal.ID,
		PaymentMethodID: method.ID,
		PaymentType:     ledger.PaymentTypeIn,
		PartnerType:     ledger.PartnerTypeClient,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		Ref:             "Paiement Orange Money - " + inv.Number,
		Date:            date,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	log.InfoContext(ctx, "payment created", "payment_id", payment.ID, "journal", journal.Code)
	return payment, nil
}

// issueReceipt renders the receipt, stores it and records where it lives.
func (s *SettlementService) issueReceipt(ctx context.Context, tx *models.Transaction, inv *models.Invoice, customer *models.Customer) (*models.Transaction, error) {
	if s.Storage == nil {
		return nil, errors.New("no storage configured for receipts")
	}
	receipt := invoicepdf.NewReceipt(s.Company, tx, inv, customer)
	pdf, err := s.Renderer.PDF(ctx, receipt)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	filename := invoicepdf.Filename(tx.TransactionID, now)
	put, err := s.Storage.Put(ctx, bytes.NewReader(pdf), storage.PutInput{
		Filename:    filename,
		ContentType: "application/pdf",
		Size:        int64(len(pdf)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store receipt: %w", err)
	}

	if err := s.Transactions.UpdateFields(ctx, tx.TransactionID, map[string]any{
		"url_facture":          put.URL,
		"facture_pdf":          pdf,
		"facture_filename":     filename,
		"facture_key":          put.Key,
		"facture_generated_at": now,
		"facture_size":         len(pdf),
	}); err != nil {
		return nil, fmt.Errorf("failed to save receipt details: %w", err)
	}
	return s.Transactions.GetByTransactionID(ctx, tx.TransactionID)
}

var emailBody = template.Must(template.New("email").Parse(`<p>Bonjour {{.Name}},</p>
<p>Votre paiement Orange Money a été traité avec succès.</p>
<p><strong>Détails:</strong></p>
<ul>
<li>Transaction ID: {{.TransactionID}}</li>
<li>Montant: {{.Amount}}</li>
<li>Date: {{.Date}}</li>
</ul>
<p>Vous pouvez télécharger votre facture <a href="{{.URL}}">ici</a>.</p>
<p>Merci pour votre confiance,<br>L'équipe {{.Company}}</p>
`))

func (s *SettlementService) sendReceipt(ctx context.Context, tx *models.Transaction, customer *models.Customer) error {
	date := "N/A"
	if tx.CompletedAt != nil {
		date = tx.CompletedAt.Format("02/01/2006 15:04:05")
	}
	var body bytes.Buffer
	if err := emailBody.Execute(&body, map[string]string{
		"Name":          customer.Name,
		"TransactionID": tx.TransactionID,
		"Amount":        tx.FormattedAmount(),
		"Date":          date,
		"URL":           tx.URLFacture,
		"Company":       s.Company.Name,
	}); err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	to := []string{customer.Email}
	if extra := s.SMTP.ExtraRecipient; extra != "" && extra != customer.Email {
		to = append(to, extra)
	}
	email := mailer.Email{
		FromName: s.SMTP.FromName,
		From:     s.SMTP.From,
		To:       to,
		Subject:  "Facture Orange Money - " + tx.Reference,
		HTMLBody: body.String(),
	}
	if len(tx.FacturePDF) > 0 {
		email.Attachments = []mailer.Attachment{{
			Filename:    tx.FactureFilename,
			ContentType: "application/pdf",
			Data:        tx.FacturePDF,
		}}
	}
	if err := s.Mailer.Send(ctx, email); err != nil {
		return fmt.Errorf("failed to send receipt email: %w", err)
	}
	return s.Transactions.UpdateFields(ctx, tx.TransactionID, map[string]any{"invoice_emailed_at": s.now().UTC()})
}

// RegenerateInvoice renders a fresh receipt for a completed transaction and
// replaces the stored one.
func (s *SettlementService) RegenerateInvoice(ctx context.Context, transactionID string) (*models.Transaction, error) {
	if s.Renderer == nil {
		return nil, apperr.InvalidErr("Receipt generation is disabled")
	}
	tx, err := s.Transactions.GetByTransactionID(ctx, transactionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFoundErr("Transaction not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", transactionID, err)
	}
	if tx.Status != models.StatusCompleted {
		return nil, apperr.InvalidErr("Only completed transactions have a receipt")
	}

	var inv *models.Invoice
	if tx.InvoiceID != "" {
		if inv, err = s.Ledger.GetInvoice(ctx, tx.InvoiceID); err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return nil, fmt.Errorf("failed to fetch invoice %s: %w", tx.InvoiceID, err)
		}
	}
	customer, err := s.Ledger.GetCustomer(ctx, tx.PartnerID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("failed to fetch partner %s: %w", tx.PartnerID, err)
	}

	oldKey := tx.FactureKey
	updated, err := s.issueReceipt(ctx, tx, inv, customer)
	if err != nil {
		return nil, err
	}
	if oldKey != "" && oldKey != updated.FactureKey {
		if err := s.Storage.Delete(ctx, oldKey); err != nil {
			s.Logger.WarnContext(ctx, "failed to delete previous receipt", "key", oldKey, "error", err)
		}
	}
	s.Logger.InfoContext(ctx, "receipt regenerated", "transaction_id", transactionID, "url", updated.URLFacture)
	return updated, nil
}
