package models

import (
	"time"
)

// Customer is the payer as known to the accounting side.
type Customer struct {
	ID        ExternalID `bson:"_id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	Email     string     `bson:"email,omitempty" json:"email,omitempty"`
	Phone     string     `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
}

type InvoiceLine struct {
	Name      string `bson:"name" json:"name"`
	Quantity  Money  `bson:"quantity" json:"quantity"`
	PriceUnit Money  `bson:"price_unit" json:"price_unit"`
	Subtotal  Money  `bson:"subtotal" json:"subtotal"`
}

const (
	InvoiceNotPaid = "not_paid"
	InvoicePartial = "partial"
	InvoicePaid    = "paid"
)

// Invoice is a posted customer invoice with its receivable lines.
type Invoice struct {
	ID              ExternalID       `bson:"_id" json:"id"`
	Number          string           `bson:"number" json:"number"`
	PartnerID       ExternalID       `bson:"partner_id" json:"partner_id"`
	Currency        string           `bson:"currency" json:"currency"`
	AmountTotal     Money            `bson:"amount_total" json:"amount_total"`
	AmountResidual  Money            `bson:"amount_residual" json:"amount_residual"`
	State           string           `bson:"state" json:"state"`
	PaymentState    string           `bson:"payment_state" json:"payment_state"`
	Lines           []InvoiceLine    `bson:"lines,omitempty" json:"lines,omitempty"`
	ReceivableLines []LedgerLine     `bson:"receivable_lines" json:"receivable_lines"`
	Reconciliations []Reconciliation `bson:"reconciliations,omitempty" json:"reconciliations,omitempty"`
	InvoiceDate     time.Time        `bson:"invoice_date" json:"invoice_date"`
	UpdatedAt       time.Time        `bson:"updated_at" json:"updated_at"`
	Version         int              `bson:"version,omitempty" json:"version,omitempty"`
}

// Reconciliation records a payment applied to an invoice.
type Reconciliation struct {
	PaymentID string    `bson:"payment_id" json:"payment_id"`
	Amount    Money     `bson:"amount" json:"amount"`
	Pairs     int       `bson:"pairs" json:"pairs"`
	At        time.Time `bson:"at" json:"at"`
}

func (inv *Invoice) ReconciledWith(paymentID string) (Reconciliation, bool) {
	for _, r := range inv.Reconciliations {
		if r.PaymentID == paymentID {
			return r, true
		}
	}
	return Reconciliation{}, false
}

// Payment coverage of an invoice by completed transactions.
const (
	CoverageNone     = "none"
	CoveragePartial  = "partial"
	CoverageFull     = "full"
	CoverageOverpaid = "overpaid"
)
