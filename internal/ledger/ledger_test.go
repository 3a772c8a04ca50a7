package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

func receivable(id string, amount int64) models.LedgerLine {
	m := models.MoneyFromInt(amount)
	return models.LedgerLine{ID: id, AccountType: models.AccountReceivable, Debit: m, Residual: m}
}

func credit(id string, amount int64) models.LedgerLine {
	m := models.MoneyFromInt(amount)
	return models.LedgerLine{ID: id, AccountType: models.AccountReceivable, Credit: m, Residual: m}
}

func TestReconcileLines_FullPayment(t *testing.T) {
	inv, pay, matches := ReconcileLines(
		[]models.LedgerLine{receivable("i1", 5000)},
		[]models.LedgerLine{credit("p1", 5000)},
	)

	require.Len(t, matches, 1)
	assert.Equal(t, "5000", matches[0].Amount.String())
	assert.True(t, inv[0].Reconciled)
	assert.True(t, pay[0].Reconciled)
	assert.True(t, inv[0].Residual.IsZero())
}

func TestReconcileLines_PartialPaymentLeavesResidual(t *testing.T) {
	inv, pay, matches := ReconcileLines(
		[]models.LedgerLine{receivable("i1", 10000)},
		[]models.LedgerLine{credit("p1", 4000)},
	)

	require.Len(t, matches, 1)
	assert.False(t, inv[0].Reconciled)
	assert.Equal(t, "6000", inv[0].Residual.String())
	assert.True(t, pay[0].Reconciled)
}

func TestReconcileLines_SpreadsAcrossInvoiceLines(t *testing.T) {
	inv, _, matches := ReconcileLines(
		[]models.LedgerLine{receivable("i1", 3000), receivable("i2", 3000)},
		[]models.LedgerLine{credit("p1", 5000)},
	)

	require.Len(t, matches, 2)
	assert.Equal(t, "i1", matches[0].InvoiceLineID)
	assert.Equal(t, "3000", matches[0].Amount.String())
	assert.Equal(t, "2000", matches[1].Amount.String())
	assert.True(t, inv[0].Reconciled)
	assert.Equal(t, "1000", inv[1].Residual.String())
}

func TestReconcileLines_SkipsReconciledAndOtherAccounts(t *testing.T) {
	done := receivable("i1", 5000)
	done.Reconciled = true
	cash := models.LedgerLine{ID: "p0", AccountType: AccountLiquidity, Debit: models.MoneyFromInt(5000), Residual: models.MoneyFromInt(5000)}

	inputInv := []models.LedgerLine{done}
	_, _, matches := ReconcileLines(inputInv, []models.LedgerLine{cash, credit("p1", 5000)})

	assert.Empty(t, matches)
	assert.Equal(t, "5000", inputInv[0].Residual.String(), "inputs are not modified")
}

func seeded(t *testing.T) *Memory {
	t.Helper()
	ctx := context.Background()
	l := NewMemory()
	require.NoError(t, l.SaveCustomer(ctx, models.Customer{ID: "7", Name: "Awa Ndiaye", Email: "awa@example.sn"}))
	require.NoError(t, l.SaveInvoice(ctx, models.Invoice{
		ID:              "42",
		Number:          "INV/2024/0042",
		PartnerID:       "7",
		Currency:        "XOF",
		AmountTotal:     models.MoneyFromInt(5000),
		AmountResidual:  models.MoneyFromInt(5000),
		State:           "posted",
		PaymentState:    models.InvoiceNotPaid,
		ReceivableLines: []models.LedgerLine{receivable("inv-42-1", 5000)},
	}))
	require.NoError(t, l.SaveJournal(ctx, models.Journal{ID: "j-bank", Code: "BNK1", Type: "bank"}))
	require.NoError(t, l.SaveJournal(ctx, models.Journal{ID: "j-cash", Code: CashJournalCode, Type: "cash"}))
	require.NoError(t, l.SavePaymentMethod(ctx, models.PaymentMethod{ID: "pm-out", Code: "manual", PaymentType: "outbound"}))
	require.NoError(t, l.SavePaymentMethod(ctx, models.PaymentMethod{ID: "pm-in", Code: "manual", PaymentType: PaymentTypeIn}))
	return l
}

func TestMemory_JournalAndMethodLookup(t *testing.T) {
	l := seeded(t)
	ctx := context.Background()

	j, err := l.FindCashJournal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "j-cash", j.ID)

	pm, err := l.FindInboundPaymentMethod(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pm-in", pm.ID)

	_, err = NewMemory().FindCashJournal(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPickJournal_FallsBackToBank(t *testing.T) {
	j, ok := pickJournal([]models.Journal{{ID: "s", Type: "sale"}, {ID: "b", Type: "bank"}})
	require.True(t, ok)
	assert.Equal(t, "b", j.ID)
}

func TestMemory_PaymentLifecycle(t *testing.T) {
	l := seeded(t)
	ctx := context.Background()

	draft := &models.AccountPayment{
		TransactionID: "OM-42-1700000000-5000",
		PartnerID:     "7",
		InvoiceID:     "42",
		Amount:        models.MoneyFromInt(5000),
		Currency:      "XOF",
		Ref:           "Paiement Orange Money - INV/2024/0042",
	}
	p, err := l.CreatePayment(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentDraft, p.State)

	again, err := l.CreatePayment(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID, "one payment per transaction")

	posted, err := l.PostPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPosted, posted.State)
	require.Len(t, posted.Lines, 2)

	reposted, err := l.PostPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, posted.Lines, reposted.Lines)

	pairs, err := l.Reconcile(ctx, "42", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pairs)

	inv, err := l.GetInvoice(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, inv.PaymentState)
	assert.True(t, inv.AmountResidual.IsZero())

	pairs, err = l.Reconcile(ctx, "42", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pairs, "rerun reports the recorded reconciliation")
	inv, err = l.GetInvoice(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, inv.Reconciliations, 1)

	found, err := l.FindPaymentByTransaction(ctx, "OM-42-1700000000-5000")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	assert.Len(t, l.Payments(), 1)
}

func TestMemory_ReconcilePartialPayment(t *testing.T) {
	l := seeded(t)
	ctx := context.Background()

	p, err := l.CreatePayment(ctx, &models.AccountPayment{TransactionID: "OM-42-1-2000", Amount: models.MoneyFromInt(2000)})
	require.NoError(t, err)
	_, err = l.PostPayment(ctx, p.ID)
	require.NoError(t, err)

	pairs, err := l.Reconcile(ctx, "42", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pairs)

	inv, err := l.GetInvoice(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePartial, inv.PaymentState)
	assert.Equal(t, "3000", inv.AmountResidual.String())
}

func TestMemory_ReconcileDraftPaymentMatchesNothing(t *testing.T) {
	l := seeded(t)
	ctx := context.Background()

	p, err := l.CreatePayment(ctx, &models.AccountPayment{TransactionID: "OM-x", Amount: models.MoneyFromInt(5000)})
	require.NoError(t, err)

	pairs, err := l.Reconcile(ctx, "42", p.ID)
	require.NoError(t, err)
	assert.Zero(t, pairs)

	_, err = l.Reconcile(ctx, "404", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
