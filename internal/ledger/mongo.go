package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

const (
	CustomersCollection      = "customers"
	InvoicesCollection       = "invoices"
	JournalsCollection       = "journals"
	PaymentMethodsCollection = "payment_methods"
	PaymentsCollection       = "account_payments"
)

const opTimeout = 5 * time.Second

// Mongo keeps the ledger in the same database as the transactions.
type Mongo struct {
	customers *mongo.Collection
	invoices  *mongo.Collection
	journals  *mongo.Collection
	methods   *mongo.Collection
	payments  *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		customers: db.Collection(CustomersCollection),
		invoices:  db.Collection(InvoicesCollection),
		journals:  db.Collection(JournalsCollection),
		methods:   db.Collection(PaymentMethodsCollection),
		payments:  db.Collection(PaymentsCollection),
	}
}

// EnsureIndexes makes one payment per transaction a database constraint.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := m.payments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "transaction_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create payment index: %w", err)
	}
	return nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOneOptions) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var out T
	err := coll.FindOne(ctx, filter, opts...).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", coll.Name(), err)
	}
	return &out, nil
}

func upsert(ctx context.Context, coll *mongo.Collection, id any, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", coll.Name(), err)
	}
	return nil
}

func (m *Mongo) SaveCustomer(ctx context.Context, c models.Customer) error {
	return upsert(ctx, m.customers, c.ID, c)
}

func (m *Mongo) SaveInvoice(ctx context.Context, inv models.Invoice) error {
	return upsert(ctx, m.invoices, inv.ID, inv)
}

func (m *Mongo) SaveJournal(ctx context.Context, j models.Journal) error {
	return upsert(ctx, m.journals, j.ID, j)
}

func (m *Mongo) SavePaymentMethod(ctx context.Context, pm models.PaymentMethod) error {
	return upsert(ctx, m.methods, pm.ID, pm)
}

func (m *Mongo) GetCustomer(ctx context.Context, id models.ExternalID) (*models.Customer, error) {
	return findOne[models.Customer](ctx, m.customers, bson.M{"_id": id})
}

func (m *Mongo) GetInvoice(ctx context.Context, id models.ExternalID) (*models.Invoice, error) {
	return findOne[models.Invoice](ctx, m.invoices, bson.M{"_id": id})
}

func (m *Mongo) FindCashJournal(ctx context.Context) (*models.Journal, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"code": CashJournalCode},
		bson.M{"type": bson.M{"$in": bson.A{"cash", "bank"}}},
	}}
	cursor, err := m.journals.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query journals: %w", err)
	}
	var journals []models.Journal
	if err := cursor.All(ctx, &journals); err != nil {
		return nil, fmt.Errorf("failed to decode journals: %w", err)
	}
	j, ok := pickJournal(journals)
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

func (m *Mongo) FindInboundPaymentMethod(ctx context.Context) (*models.PaymentMethod, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := m.methods.Find(ctx, bson.M{"payment_type": PaymentTypeIn})
	if err != nil {
		return nil, fmt.Errorf("failed to query payment methods: %w", err)
	}
	var methods []models.PaymentMethod
	if err := cursor.All(ctx, &methods); err != nil {
		return nil, fmt.Errorf("failed to decode payment methods: %w", err)
	}
	pm, ok := pickInboundMethod(methods)
	if !ok {
		return nil, ErrNotFound
	}
	return pm, nil
}

func (m *Mongo) FindPaymentByTransaction(ctx context.Context, transactionID string) (*models.AccountPayment, error) {
	return findOne[models.AccountPayment](ctx, m.payments, bson.M{"transaction_id": transactionID})
}

func (m *Mongo) CreatePayment(ctx context.Context, p *models.AccountPayment) (*models.AccountPayment, error) {
	created := *p
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	created.State = models.PaymentDraft
	created.CreatedAt = now
	created.UpdatedAt = now

	insertCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := m.payments.InsertOne(insertCtx, created); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return m.FindPaymentByTransaction(ctx, p.TransactionID)
		}
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}
	return &created, nil
}

func (m *Mongo) PostPayment(ctx context.Context, paymentID string) (*models.AccountPayment, error) {
	p, err := findOne[models.AccountPayment](ctx, m.payments, bson.M{"_id": paymentID})
	if err != nil {
		return nil, err
	}
	if p.State == models.PaymentPosted {
		return p, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"state":      models.PaymentPosted,
		"lines":      postedLines(p),
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var posted models.AccountPayment
	err = m.payments.FindOneAndUpdate(ctx, bson.M{"_id": paymentID, "state": models.PaymentDraft}, update, opts).Decode(&posted)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// posted concurrently
		return findOne[models.AccountPayment](ctx, m.payments, bson.M{"_id": paymentID})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to post payment: %w", err)
	}
	return &posted, nil
}

// reconcileAttempts bounds the re-reads when other payments keep changing
// the same invoice.
const reconcileAttempts = 5

// Reconcile writes the invoice first, guarded on the version it was read at
// and on the payment not being recorded yet, then the payment lines. When
// another payment changed the invoice in between, the invoice is read again
// and the allocation redone. A retry after a partial write finds the
// reconciliation on the invoice and only completes the payment side.
func (m *Mongo) Reconcile(ctx context.Context, invoiceID models.ExternalID, paymentID string) (int, error) {
	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		pairs, done, err := m.reconcileOnce(ctx, invoiceID, paymentID)
		if err != nil {
			return 0, err
		}
		if done {
			return pairs, nil
		}
	}
	return 0, fmt.Errorf("%w: invoice %s", ErrConcurrentUpdate, invoiceID)
}

func (m *Mongo) reconcileOnce(ctx context.Context, invoiceID models.ExternalID, paymentID string) (int, bool, error) {
	inv, err := m.GetInvoice(ctx, invoiceID)
	if err != nil {
		return 0, false, err
	}
	p, err := findOne[models.AccountPayment](ctx, m.payments, bson.M{"_id": paymentID})
	if err != nil {
		return 0, false, err
	}

	_, already := inv.ReconciledWith(paymentID)
	readVersion := inv.Version
	pairs := applyReconciliation(inv, p, time.Now().UTC())
	if pairs == 0 {
		return 0, true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if !already {
		filter := bson.M{"_id": invoiceID, "reconciliations.payment_id": bson.M{"$ne": paymentID}}
		if readVersion == 0 {
			filter["version"] = bson.M{"$exists": false}
		} else {
			filter["version"] = readVersion
		}
		res, err := m.invoices.UpdateOne(ctx, filter, bson.M{
			"$set": bson.M{
				"receivable_lines": inv.ReceivableLines,
				"amount_residual":  inv.AmountResidual,
				"payment_state":    inv.PaymentState,
				"reconciliations":  inv.Reconciliations,
				"updated_at":       inv.UpdatedAt,
			},
			"$inc": bson.M{"version": 1},
		})
		if err != nil {
			return 0, false, fmt.Errorf("failed to update invoice %s: %w", invoiceID, err)
		}
		if res.MatchedCount == 0 {
			return 0, false, nil
		}
	}

	_, err = m.payments.UpdateOne(ctx, bson.M{"_id": paymentID}, bson.M{"$set": bson.M{
		"lines":      p.Lines,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return 0, false, fmt.Errorf("failed to update payment %s: %w", paymentID, err)
	}
	return pairs, true, nil
}
