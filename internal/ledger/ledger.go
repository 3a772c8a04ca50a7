// Package ledger is the accounting side of a settled payment: customers,
// invoices, journals and the payments reconciled against them.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

var (
	ErrNotFound         = errors.New("ledger: record not found")
	ErrConcurrentUpdate = errors.New("ledger: invoice kept changing during reconciliation")
)

const (
	CashJournalCode   = "CSH1"
	AccountLiquidity  = "asset_cash"
	PaymentTypeIn     = "inbound"
	PartnerTypeClient = "customer"
)

type Ledger interface {
	GetCustomer(ctx context.Context, id models.ExternalID) (*models.Customer, error)
	GetInvoice(ctx context.Context, id models.ExternalID) (*models.Invoice, error)
	// FindCashJournal prefers the journal coded CSH1, then any cash journal,
	// then any bank journal.
	FindCashJournal(ctx context.Context) (*models.Journal, error)
	FindInboundPaymentMethod(ctx context.Context) (*models.PaymentMethod, error)
	FindPaymentByTransaction(ctx context.Context, transactionID string) (*models.AccountPayment, error)
	// CreatePayment stores a draft payment. A payment already recorded for the
	// same transaction is returned instead of a second one.
	CreatePayment(ctx context.Context, p *models.AccountPayment) (*models.AccountPayment, error)
	PostPayment(ctx context.Context, paymentID string) (*models.AccountPayment, error)
	// Reconcile matches the payment's receivable lines against the invoice's
	// and returns the number of matched pairs.
	Reconcile(ctx context.Context, invoiceID models.ExternalID, paymentID string) (int, error)
}

// Seeder loads reference data, used by the memory ledger in tests and by
// omctl seed against MongoDB.
type Seeder interface {
	SaveCustomer(ctx context.Context, c models.Customer) error
	SaveInvoice(ctx context.Context, inv models.Invoice) error
	SaveJournal(ctx context.Context, j models.Journal) error
	SavePaymentMethod(ctx context.Context, m models.PaymentMethod) error
}

// Match is one allocation between an invoice line and a payment line.
type Match struct {
	InvoiceLineID string
	PaymentLineID string
	Amount        models.Money
}

// ReconcileLines allocates open payment credits to open invoice debits. Only
// unreconciled receivable lines take part; a line whose residual reaches zero
// is marked reconciled. The inputs are not modified.
func ReconcileLines(invoiceLines, paymentLines []models.LedgerLine) ([]models.LedgerLine, []models.LedgerLine, []Match) {
	inv := append([]models.LedgerLine(nil), invoiceLines...)
	pay := append([]models.LedgerLine(nil), paymentLines...)

	var matches []Match
	for i := range pay {
		if !open(pay[i]) {
			continue
		}
		for j := range inv {
			if !open(inv[j]) {
				continue
			}
			amount := pay[i].Residual.Min(inv[j].Residual)
			pay[i].Residual = pay[i].Residual.Sub(amount)
			inv[j].Residual = inv[j].Residual.Sub(amount)
			pay[i].Reconciled = !pay[i].Residual.IsPositive()
			inv[j].Reconciled = !inv[j].Residual.IsPositive()
			matches = append(matches, Match{InvoiceLineID: inv[j].ID, PaymentLineID: pay[i].ID, Amount: amount})
			if pay[i].Reconciled {
				break
			}
		}
	}
	return inv, pay, matches
}

func open(l models.LedgerLine) bool {
	return l.AccountType == models.AccountReceivable && !l.Reconciled && l.Residual.IsPositive()
}

// applyReconciliation updates inv and pay in place and returns the number of
// matched pairs. An invoice that already recorded the payment is left alone.
func applyReconciliation(inv *models.Invoice, pay *models.AccountPayment, now time.Time) int {
	if prior, ok := inv.ReconciledWith(pay.ID); ok {
		for i := range pay.Lines {
			if pay.Lines[i].AccountType == models.AccountReceivable {
				pay.Lines[i].Residual = models.Money{}
				pay.Lines[i].Reconciled = true
			}
		}
		return prior.Pairs
	}

	invLines, payLines, matches := ReconcileLines(inv.ReceivableLines, pay.Lines)
	if len(matches) == 0 {
		return 0
	}
	applied := models.Money{}
	for _, m := range matches {
		applied = applied.Add(m.Amount)
	}

	inv.ReceivableLines = invLines
	pay.Lines = payLines
	residual := models.Money{}
	for _, l := range invLines {
		if l.AccountType == models.AccountReceivable {
			residual = residual.Add(l.Residual)
		}
	}
	inv.AmountResidual = residual
	inv.PaymentState = invoicePaymentState(inv.AmountTotal, residual)
	inv.Reconciliations = append(inv.Reconciliations, models.Reconciliation{
		PaymentID: pay.ID,
		Amount:    applied,
		Pairs:     len(matches),
		At:        now,
	})
	inv.UpdatedAt = now
	inv.Version++
	pay.UpdatedAt = now
	return len(matches)
}

func invoicePaymentState(total, residual models.Money) string {
	switch {
	case !residual.IsPositive():
		return models.InvoicePaid
	case residual.LessThan(total.Decimal):
		return models.InvoicePartial
	default:
		return models.InvoiceNotPaid
	}
}

// postedLines are the journal items of a posted inbound payment: the cash
// debit and the receivable credit that reconciliation consumes.
func postedLines(p *models.AccountPayment) []models.LedgerLine {
	return []models.LedgerLine{
		{ID: uuid.NewString(), AccountType: AccountLiquidity, Debit: p.Amount},
		{ID: uuid.NewString(), AccountType: models.AccountReceivable, Credit: p.Amount, Residual: p.Amount},
	}
}

// pickJournal applies the CSH1 → cash → bank preference to a journal list.
func pickJournal(journals []models.Journal) (*models.Journal, bool) {
	for _, want := range []func(models.Journal) bool{
		func(j models.Journal) bool { return j.Code == CashJournalCode },
		func(j models.Journal) bool { return j.Type == "cash" },
		func(j models.Journal) bool { return j.Type == "bank" },
	} {
		for i := range journals {
			if want(journals[i]) {
				j := journals[i]
				return &j, true
			}
		}
	}
	return nil, false
}

func pickInboundMethod(methods []models.PaymentMethod) (*models.PaymentMethod, bool) {
	var found *models.PaymentMethod
	for i := range methods {
		if methods[i].PaymentType != PaymentTypeIn {
			continue
		}
		m := methods[i]
		if m.Code == "manual" {
			return &m, true
		}
		if found == nil {
			found = &m
		}
	}
	return found, found != nil
}
