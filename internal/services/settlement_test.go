package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/apperr"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/invoicepdf"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/ledger"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/store"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/worker"
)

func TestSettlement_NoJournal_ShouldStayPendingUntilWorkerRetries(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.initiate(t, "OM-1")

	res, err := h.webhooks.Handle(ctx, webhookBody("OM-1", "SUCCESS", "MP1"))
	require.NoError(t, err, "completion must not fail on settlement errors")
	assert.Equal(t, models.StatusCompleted, res.Status)

	tx, err := h.stores.Transactions.GetByTransactionID(ctx, "OM-1")
	require.NoError(t, err)
	assert.Equal(t, models.SettlementPending, tx.SettlementState)
	assert.Equal(t, 1, tx.SettlementTries)
	assert.Contains(t, tx.SettlementError, "cash journal")
	assert.Empty(t, h.ledger.Payments())

	require.NoError(t, h.ledger.SaveJournal(ctx, models.Journal{ID: "j-cash", Code: ledger.CashJournalCode, Type: "cash"}))

	pool := worker.NewPool(8, h.settlement.Settle, testLogger)
	pool.Start(2)
	w := NewSettlementWorker(h.stores.Transactions, pool, time.Minute, testLogger)

	queued, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
	require.NoError(t, pool.Shutdown(ctx))

	tx, err = h.stores.Transactions.GetByTransactionID(ctx, "OM-1")
	require.NoError(t, err)
	assert.Equal(t, models.SettlementSettled, tx.SettlementState)
	assert.Empty(t, tx.SettlementError)
	assert.Len(t, h.ledger.Payments(), 1)
	assert.Equal(t, 1, h.mail.Count())

	pending, err := h.stores.Transactions.ListPendingSettlement(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSettlement_MaxAttempts_ShouldMarkFailed(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.initiate(t, "OM-1")
	_, err := h.webhooks.Handle(ctx, webhookBody("OM-1", "SUCCESS", "MP1"))
	require.NoError(t, err)

	assert.Error(t, h.settlement.Settle(ctx, "OM-1"))
	assert.Error(t, h.settlement.Settle(ctx, "OM-1"))

	tx, err := h.stores.Transactions.GetByTransactionID(ctx, "OM-1")
	require.NoError(t, err)
	assert.Equal(t, 3, tx.SettlementTries)
	assert.Equal(t, models.SettlementFailed, tx.SettlementState)

	pending, err := h.stores.Transactions.ListPendingSettlement(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSettlement_MailFailure_ShouldRetryOnlyTheMissingSteps(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.initiate(t, "OM-1")
	h.mail.Err = errors.New("smtp down")

	_, err := h.webhooks.Handle(ctx, webhookBody("OM-1", "SUCCESS", "MP1"))
	require.NoError(t, err)

	tx, err := h.stores.Transactions.GetByTransactionID(ctx, "OM-1")
	require.NoError(t, err)
	assert.Equal(t, models.SettlementPending, tx.SettlementState)
	assert.NotEmpty(t, tx.URLFacture)
	assert.Nil(t, tx.InvoiceEmailedAt)
	firstURL := tx.URLFacture

	inv, err := h.ledger.GetInvoice(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, inv.PaymentState)

	h.mail.Err = nil
	require.NoError(t, h.settlement.Settle(ctx, "OM-1"))

	tx, err = h.stores.Transactions.GetByTransactionID(ctx, "OM-1")
	require.NoError(t, err)
	assert.Equal(t, models.SettlementSettled, tx.SettlementState)
	assert.Equal(t, firstURL, tx.URLFacture)
	assert.NotNil(t, tx.InvoiceEmailedAt)
	assert.Len(t, h.ledger.Payments(), 1)
	assert.Equal(t, 1, h.mail.Count())

	inv, err = h.ledger.GetInvoice(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, inv.Reconciliations, 1)
}

type slowConverter struct{ delay time.Duration }

func (c slowConverter) Convert(ctx context.Context, _ []byte) ([]byte, error) {
	select {
	case <-time.After(c.delay):
		return []byte("%PDF-1.4 receipt"), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSettlement_ConcurrentRuns_ShouldIssueOneReceipt(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.initiate(t, "OM-1")
	h.settlement.Renderer = invoicepdf.NewRenderer(slowConverter{delay: 50 * time.Millisecond})

	_, won, err := h.stores.Transactions.Complete(ctx, "OM-1", store.StatusUpdate{ProviderStatus: "SUCCESS"})
	require.NoError(t, err)
	require.True(t, won)

	pool := worker.NewPool(8, h.settlement.Settle, testLogger)
	pool.Start(2)
	w := NewSettlementWorker(h.stores.Transactions, pool, time.Minute, testLogger)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			assert.NoError(t, h.settlement.Settle(ctx, "OM-1"))
		}()
	}
	close(start)
	_, err = w.RunOnce(ctx)
	require.NoError(t, err)
	wg.Wait()
	require.NoError(t, pool.Shutdown(ctx))

	tx, err := h.stores.Transactions.GetByTransactionID(ctx, "OM-1")
	require.NoError(t, err)
	assert.Equal(t, models.SettlementSettled, tx.SettlementState)
	assert.Nil(t, tx.SettlementLease)
	assert.Equal(t, 1, h.mail.Count())
	assert.Len(t, h.ledger.Payments(), 1)
}

func TestSettlement_HeldLease_ShouldSkipUntilReleased(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.initiate(t, "OM-1")
	_, _, err := h.stores.Transactions.Complete(ctx, "OM-1", store.StatusUpdate{})
	require.NoError(t, err)

	_, ok, err := h.stores.Transactions.ClaimSettlement(ctx, "OM-1", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.settlement.Settle(ctx, "OM-1"))
	assert.Empty(t, h.ledger.Payments(), "another runner holds the settlement")

	require.NoError(t, h.stores.Transactions.UpdateFields(ctx, "OM-1", map[string]any{"settlement_lease_until": nil}))
	require.NoError(t, h.settlement.Settle(ctx, "OM-1"))
	assert.Len(t, h.ledger.Payments(), 1)
	assert.Equal(t, 1, h.mail.Count())
}

func TestSettlement_SkipsUnfinishedTransactions(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.initiate(t, "OM-1")

	require.NoError(t, h.settlement.Settle(ctx, "OM-1"))
	assert.Empty(t, h.ledger.Payments())

	err := h.settlement.Settle(ctx, "OM-404")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestSettlement_PartialPayment(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	req := initiateRequest("OM-1")
	req.Amount = models.MoneyFromInt(2000)
	_, err := h.payments.Initiate(ctx, req)
	require.NoError(t, err)

	_, err = h.webhooks.Handle(ctx, webhookBody("OM-1", "SUCCESS", "MP1"))
	require.NoError(t, err)

	inv, err := h.ledger.GetInvoice(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePartial, inv.PaymentState)
	assert.Equal(t, "3000", inv.AmountResidual.String())

	sum, err := h.payments.InvoiceSummary(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, models.CoveragePartial, sum.Coverage)
}

func TestRegenerateInvoice(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.initiate(t, "OM-1")

	_, err := h.settlement.RegenerateInvoice(ctx, "OM-1")
	assert.True(t, apperr.IsKind(err, apperr.Invalid))

	_, err = h.webhooks.Handle(ctx, webhookBody("OM-1", "SUCCESS", "MP1"))
	require.NoError(t, err)

	tx, err := h.settlement.RegenerateInvoice(ctx, "OM-1")
	require.NoError(t, err)
	assert.NotEmpty(t, tx.URLFacture)
	assert.NotEmpty(t, tx.FactureKey)
	assert.NotNil(t, tx.FactureGenerated)
	assert.Equal(t, 1, h.mail.Count(), "regenerating does not resend the email")

	_, err = h.settlement.RegenerateInvoice(ctx, "OM-404")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	h.settlement.Renderer = nil
	_, err = h.settlement.RegenerateInvoice(ctx, "OM-1")
	assert.Equal(t, "Receipt generation is disabled", apperr.PublicMessage(err))
}
