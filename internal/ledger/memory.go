package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

// Memory is an in-process ledger for development and tests.
type Memory struct {
	mu        sync.Mutex
	customers map[models.ExternalID]models.Customer
	invoices  map[models.ExternalID]models.Invoice
	journals  []models.Journal
	methods   []models.PaymentMethod
	payments  map[string]models.AccountPayment
	byTx      map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		customers: map[models.ExternalID]models.Customer{},
		invoices:  map[models.ExternalID]models.Invoice{},
		payments:  map[string]models.AccountPayment{},
		byTx:      map[string]string{},
	}
}

func cloneInvoice(inv models.Invoice) models.Invoice {
	inv.Lines = append([]models.InvoiceLine(nil), inv.Lines...)
	inv.ReceivableLines = append([]models.LedgerLine(nil), inv.ReceivableLines...)
	inv.Reconciliations = append([]models.Reconciliation(nil), inv.Reconciliations...)
	return inv
}

func clonePayment(p models.AccountPayment) models.AccountPayment {
	p.Lines = append([]models.LedgerLine(nil), p.Lines...)
	return p
}

func (m *Memory) SaveCustomer(_ context.Context, c models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) SaveInvoice(_ context.Context, inv models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (m *Memory) SaveJournal(_ context.Context, j models.Journal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journals = append(m.journals, j)
	return nil
}

func (m *Memory) SavePaymentMethod(_ context.Context, pm models.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods = append(m.methods, pm)
	return nil
}

func (m *Memory) GetCustomer(_ context.Context, id models.ExternalID) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) GetInvoice(_ context.Context, id models.ExternalID) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	inv = cloneInvoice(inv)
	return &inv, nil
}

func (m *Memory) FindCashJournal(_ context.Context) (*models.Journal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := pickJournal(m.journals)
	if !ok {
		return nil, ErrNotFound
	}
	return j, nil
}

func (m *Memory) FindInboundPaymentMethod(_ context.Context) (*models.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := pickInboundMethod(m.methods)
	if !ok {
		return nil, ErrNotFound
	}
	return pm, nil
}

func (m *Memory) FindPaymentByTransaction(_ context.Context, transactionID string) (*models.AccountPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byTx[transactionID]
	if !ok {
		return nil, ErrNotFound
	}
	p := clonePayment(m.payments[id])
	return &p, nil
}

func (m *Memory) CreatePayment(_ context.Context, p *models.AccountPayment) (*models.AccountPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byTx[p.TransactionID]; ok {
		existing := clonePayment(m.payments[id])
		return &existing, nil
	}
	created := clonePayment(*p)
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	created.State = models.PaymentDraft
	created.CreatedAt = now
	created.UpdatedAt = now
	m.payments[created.ID] = created
	m.byTx[created.TransactionID] = created.ID
	out := clonePayment(created)
	return &out, nil
}

func (m *Memory) PostPayment(_ context.Context, paymentID string) (*models.AccountPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, ErrNotFound
	}
	if p.State != models.PaymentPosted {
		p.State = models.PaymentPosted
		p.Lines = postedLines(&p)
		p.UpdatedAt = time.Now().UTC()
		m.payments[paymentID] = p
	}
	out := clonePayment(p)
	return &out, nil
}

func (m *Memory) Reconcile(_ context.Context, invoiceID models.ExternalID, paymentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return 0, ErrNotFound
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return 0, ErrNotFound
	}
	inv = cloneInvoice(inv)
	p = clonePayment(p)
	pairs := applyReconciliation(&inv, &p, time.Now().UTC())
	m.invoices[invoiceID] = inv
	m.payments[paymentID] = p
	return pairs, nil
}

// Payments lists every stored payment, oldest first.
func (m *Memory) Payments() []models.AccountPayment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AccountPayment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, clonePayment(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
