package models

import (
	"time"
)

const AccountReceivable = "asset_receivable"

// LedgerLine is a journal item. Only receivable lines take part in
// reconciliation.
type LedgerLine struct {
	ID          string `bson:"id" json:"id"`
	AccountType string `bson:"account_type" json:"account_type"`
	Debit       Money  `bson:"debit" json:"debit"`
	Credit      Money  `bson:"credit" json:"credit"`
	Residual    Money  `bson:"amount_residual" json:"amount_residual"`
	Reconciled  bool   `bson:"reconciled" json:"reconciled"`
}

type PaymentState string

const (
	PaymentDraft  PaymentState = "draft"
	PaymentPosted PaymentState = "posted"
)

// AccountPayment is the accounting payment recorded for a completed
// transaction. TransactionID is unique so a retried settlement finds the
// payment it already created.
type AccountPayment struct {
	ID              string       `bson:"_id" json:"id"`
	TransactionID   string       `bson:"transaction_id" json:"transaction_id"`
	PartnerID       ExternalID   `bson:"partner_id" json:"partner_id"`
	InvoiceID       ExternalID   `bson:"invoice_id" json:"invoice_id"`
	JournalID       string       `bson:"journal_id" json:"journal_id"`
	PaymentMethodID string       `bson:"payment_method_id" json:"payment_method_id"`
	PaymentType     string       `bson:"payment_type" json:"payment_type"`
	PartnerType     string       `bson:"partner_type" json:"partner_type"`
	Amount          Money        `bson:"amount" json:"amount"`
	Currency        string       `bson:"currency" json:"currency"`
	Ref             string       `bson:"ref" json:"ref"`
	State           PaymentState `bson:"state" json:"state"`
	Lines           []LedgerLine `bson:"lines,omitempty" json:"lines,omitempty"`
	Date            time.Time    `bson:"date" json:"date"`
	CreatedAt       time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `bson:"updated_at" json:"updated_at"`
}

type Journal struct {
	ID   string `bson:"_id" json:"id"`
	Code string `bson:"code" json:"code"`
	Name string `bson:"name" json:"name"`
	Type string `bson:"type" json:"type"`
}

type PaymentMethod struct {
	ID          string `bson:"_id" json:"id"`
	Code        string `bson:"code" json:"code"`
	Name        string `bson:"name" json:"name"`
	PaymentType string `bson:"payment_type" json:"payment_type"`
}
