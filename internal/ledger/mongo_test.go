package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

func docOf(t *testing.T, v any) bson.D {
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func updated(n int) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: n}, bson.E{Key: "nModified", Value: n})
}

func mongoInvoice(total int64) models.Invoice {
	return models.Invoice{
		ID:              "INV1",
		Number:          "INV/2024/0001",
		PartnerID:       "7",
		Currency:        "XOF",
		AmountTotal:     models.MoneyFromInt(total),
		AmountResidual:  models.MoneyFromInt(total),
		State:           "posted",
		PaymentState:    models.InvoiceNotPaid,
		ReceivableLines: []models.LedgerLine{receivable("inv-1-1", total)},
	}
}

func postedPayment(id string, amount int64) models.AccountPayment {
	p := models.AccountPayment{
		ID:            id,
		TransactionID: "OM-" + id,
		InvoiceID:     "INV1",
		Amount:        models.MoneyFromInt(amount),
		Currency:      "XOF",
		State:         models.PaymentPosted,
		CreatedAt:     time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC),
	}
	p.Lines = postedLines(&p)
	return p
}

func TestMongoPayments(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "orangemoneydb." + PaymentsCollection

	mt.Run("create returns the stored payment on duplicate key", func(mt *mtest.T) {
		l := NewMongo(mt.DB)
		existing := postedPayment("P1", 5000)
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, docOf(mt.T, existing)),
		)

		p, err := l.CreatePayment(context.Background(), &models.AccountPayment{TransactionID: "OM-P1", Amount: models.MoneyFromInt(5000)})
		require.NoError(mt, err)
		assert.Equal(mt, "P1", p.ID)
		assert.Equal(mt, models.PaymentPosted, p.State)
	})

	mt.Run("post moves a draft to posted", func(mt *mtest.T) {
		l := NewMongo(mt.DB)
		draft := postedPayment("P1", 5000)
		draft.State = models.PaymentDraft
		draft.Lines = nil
		posted := postedPayment("P1", 5000)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, docOf(mt.T, draft)),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: docOf(mt.T, posted)}),
		)

		p, err := l.PostPayment(context.Background(), "P1")
		require.NoError(mt, err)
		assert.Equal(mt, models.PaymentPosted, p.State)
		assert.Len(mt, p.Lines, 2)

		events := mt.GetAllStartedEvents()
		require.Len(mt, events, 2)
		assert.Equal(mt, string(models.PaymentDraft), events[1].Command.Lookup("query", "state").StringValue())
	})

	mt.Run("post leaves a posted payment alone", func(mt *mtest.T) {
		l := NewMongo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, docOf(mt.T, postedPayment("P1", 5000))))

		p, err := l.PostPayment(context.Background(), "P1")
		require.NoError(mt, err)
		assert.Equal(mt, models.PaymentPosted, p.State)
		assert.Len(mt, mt.GetAllStartedEvents(), 1)
	})

	mt.Run("post returns the payment posted concurrently", func(mt *mtest.T) {
		l := NewMongo(mt.DB)
		draft := postedPayment("P1", 5000)
		draft.State = models.PaymentDraft
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, docOf(mt.T, draft)),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, docOf(mt.T, postedPayment("P1", 5000))),
		)

		p, err := l.PostPayment(context.Background(), "P1")
		require.NoError(mt, err)
		assert.Equal(mt, models.PaymentPosted, p.State)
	})
}

func TestMongoJournals(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "orangemoneydb." + JournalsCollection

	mt.Run("cash journal prefers CSH1", func(mt *mtest.T) {
		l := NewMongo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			docOf(mt.T, models.Journal{ID: "j-bank", Code: "BNK1", Type: "bank"}),
			docOf(mt.T, models.Journal{ID: "j-cash2", Code: "CSH2", Type: "cash"}),
			docOf(mt.T, models.Journal{ID: "j-cash", Code: CashJournalCode, Type: "cash"}),
		))

		j, err := l.FindCashJournal(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, "j-cash", j.ID)

		_, err = mt.GetStartedEvent().Command.LookupErr("filter", "$or")
		assert.NoError(mt, err)
	})

	mt.Run("no cash or bank journal", func(mt *mtest.T) {
		l := NewMongo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := l.FindCashJournal(context.Background())
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoReconcile(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	invNS := "orangemoneydb." + InvoicesCollection
	payNS := "orangemoneydb." + PaymentsCollection

	invoiceUpdate := func(mt *mtest.T, events []*eventCommand) bson.Raw {
		mt.Helper()
		for _, e := range events {
			if e.name == "update" && e.coll == InvoicesCollection {
				return e.cmd
			}
		}
		mt.Fatal("no invoice update sent")
		return nil
	}

	mt.Run("write is guarded on the version read", func(mt *mtest.T) {
		l := NewMongo(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, invNS, mtest.FirstBatch, docOf(mt.T, mongoInvoice(5000))),
			mtest.CreateCursorResponse(0, payNS, mtest.FirstBatch, docOf(mt.T, postedPayment("A", 5000))),
			updated(1),
			updated(1),
		)

		pairs, err := l.Reconcile(context.Background(), "INV1", "A")
		require.NoError(mt, err)
		assert.Equal(mt, 1, pairs)

		cmd := invoiceUpdate(mt, commands(mt))
		assert.False(mt, cmd.Lookup("updates", "0", "q", "version", "$exists").Boolean())
		_, err = cmd.LookupErr("updates", "0", "u", "$inc", "version")
		assert.NoError(mt, err)
	})

	mt.Run("a concurrent payment forces a re-read", func(mt *mtest.T) {
		l := NewMongo(mt.DB)
		stale := mongoInvoice(10000)

		// payment A landed between the read and the write
		fresh := mongoInvoice(10000)
		require.Equal(mt, 1, applyReconciliation(&fresh, ptr(postedPayment("A", 4000)), time.Now().UTC()))
		require.Equal(mt, 1, fresh.Version)

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, invNS, mtest.FirstBatch, docOf(mt.T, stale)),
			mtest.CreateCursorResponse(0, payNS, mtest.FirstBatch, docOf(mt.T, postedPayment("B", 4000))),
			updated(0),
			mtest.CreateCursorResponse(0, invNS, mtest.FirstBatch, docOf(mt.T, fresh)),
			mtest.CreateCursorResponse(0, payNS, mtest.FirstBatch, docOf(mt.T, postedPayment("B", 4000))),
			updated(1),
			updated(1),
		)

		pairs, err := l.Reconcile(context.Background(), "INV1", "B")
		require.NoError(mt, err)
		assert.Equal(mt, 1, pairs)

		var invoiceWrites []bson.Raw
		for _, e := range commands(mt) {
			if e.name == "update" && e.coll == InvoicesCollection {
				invoiceWrites = append(invoiceWrites, e.cmd)
			}
		}
		require.Len(mt, invoiceWrites, 2)
		last := invoiceWrites[1]
		assert.EqualValues(mt, 1, last.Lookup("updates", "0", "q", "version").AsInt64())

		recs, err := last.Lookup("updates", "0", "u", "$set", "reconciliations").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, recs, 2)
		assert.Equal(mt, "A", recs[0].Document().Lookup("payment_id").StringValue())
		assert.Equal(mt, "B", recs[1].Document().Lookup("payment_id").StringValue())
	})

	mt.Run("a recorded reconciliation only completes the payment side", func(mt *mtest.T) {
		l := NewMongo(mt.DB)
		inv := mongoInvoice(5000)
		require.Equal(mt, 1, applyReconciliation(&inv, ptr(postedPayment("A", 5000)), time.Now().UTC()))

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, invNS, mtest.FirstBatch, docOf(mt.T, inv)),
			mtest.CreateCursorResponse(0, payNS, mtest.FirstBatch, docOf(mt.T, postedPayment("A", 5000))),
			updated(1),
		)

		pairs, err := l.Reconcile(context.Background(), "INV1", "A")
		require.NoError(mt, err)
		assert.Equal(mt, 1, pairs)

		events := commands(mt)
		require.Len(mt, events, 3)
		assert.Equal(mt, PaymentsCollection, events[2].coll)
	})

	mt.Run("gives up when the invoice keeps changing", func(mt *mtest.T) {
		l := NewMongo(mt.DB)
		for i := 0; i < reconcileAttempts; i++ {
			mt.AddMockResponses(
				mtest.CreateCursorResponse(0, invNS, mtest.FirstBatch, docOf(mt.T, mongoInvoice(5000))),
				mtest.CreateCursorResponse(0, payNS, mtest.FirstBatch, docOf(mt.T, postedPayment("A", 5000))),
				updated(0),
			)
		}

		_, err := l.Reconcile(context.Background(), "INV1", "A")
		assert.ErrorIs(mt, err, ErrConcurrentUpdate)
	})
}

type eventCommand struct {
	name string
	coll string
	cmd  bson.Raw
}

// commands lists the sent commands with the collection each one targets.
func commands(mt *mtest.T) []*eventCommand {
	var out []*eventCommand
	for _, e := range mt.GetAllStartedEvents() {
		coll, _ := e.Command.Lookup(e.CommandName).StringValueOK()
		out = append(out, &eventCommand{name: e.CommandName, coll: coll, cmd: e.Command})
	}
	return out
}

func ptr[T any](v T) *T { return &v }
