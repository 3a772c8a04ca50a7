package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionType string

const (
	TypeCashIn          TransactionType = "CASHIN"
	TypeMerchantPayment TransactionType = "MERCHANT_PAYMENT"
	TypeWebPayment      TransactionType = "WEB_PAYMENT"
	TypeQRPayment       TransactionType = "QR_PAYMENT"
)

// Channels reported by the provider: API, USSD, WEB, MOBILE, QRCODE, MAXIT.
// Payment methods: QRCODE, USSD, WEB, MOBILE_APP. Both are stored verbatim.

type SettlementState string

const (
	SettlementNone    SettlementState = ""
	SettlementPending SettlementState = "pending"
	SettlementSettled SettlementState = "settled"
	SettlementFailed  SettlementState = "failed"
)

// ExternalID is a record id owned by the accounting side. Clients send it as a
// JSON number or string.
type ExternalID string

func (id *ExternalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExternalID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ExternalID(n.String())
	return nil
}

func (id ExternalID) String() string { return string(id) }

type Counterparty struct {
	ID     string `bson:"id,omitempty" json:"id,omitempty"`
	IDType string `bson:"id_type,omitempty" json:"idType,omitempty"`
}

// Transaction is one payment attempt.
type Transaction struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TransactionID     string             `bson:"transaction_id" json:"transaction_id"`
	ProviderTxID      string             `bson:"provider_transaction_id,omitempty" json:"transactionId,omitempty"`
	OrangeID          string             `bson:"orange_id,omitempty" json:"orange_id,omitempty"`
	QRID              string             `bson:"qr_id,omitempty" json:"qr_id,omitempty"`
	PayToken          string             `bson:"pay_token,omitempty" json:"pay_token,omitempty"`
	Reference         string             `bson:"reference" json:"reference"`
	Type              TransactionType    `bson:"transaction_type" json:"transaction_type"`
	Amount            Money              `bson:"amount" json:"amount"`
	Currency          string             `bson:"currency" json:"currency"`
	CustomerMSISDN    string             `bson:"customer_msisdn,omitempty" json:"customer_msisdn,omitempty"`
	MerchantCode      string             `bson:"merchant_code,omitempty" json:"merchant_code,omitempty"`
	Status            Status             `bson:"status" json:"status"`
	ProviderStatus    string             `bson:"provider_status,omitempty" json:"provider_status,omitempty"`
	StatusReason      string             `bson:"status_reason,omitempty" json:"status_reason,omitempty"`
	Channel           string             `bson:"channel,omitempty" json:"channel,omitempty"`
	PaymentMethod     string             `bson:"payment_method,omitempty" json:"payment_method,omitempty"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	Customer          Counterparty       `bson:"customer,omitempty" json:"customer,omitempty"`
	Partner           Counterparty       `bson:"partner,omitempty" json:"partner,omitempty"`
	QRCodeBase64      string             `bson:"qr_code_base64,omitempty" json:"qr_code_base64,omitempty"`
	QRCodeURL         string             `bson:"qr_code_url,omitempty" json:"qr_code_url,omitempty"`
	DeepLink          string             `bson:"deep_link,omitempty" json:"deep_link,omitempty"`
	DeepLinkOM        string             `bson:"deep_link_om,omitempty" json:"deep_link_om,omitempty"`
	DeepLinkMaxit     string             `bson:"deep_link_maxit,omitempty" json:"deep_link_maxit,omitempty"`
	ShortLink         string             `bson:"short_link,omitempty" json:"short_link,omitempty"`
	ValiditySeconds   int                `bson:"validity_seconds,omitempty" json:"validity_seconds,omitempty"`
	ValidFrom         *time.Time         `bson:"valid_from,omitempty" json:"valid_from,omitempty"`
	ValidUntil        *time.Time         `bson:"valid_until,omitempty" json:"valid_until,omitempty"`
	PaymentURL        string             `bson:"payment_url,omitempty" json:"payment_url,omitempty"`
	SuccessURL        string             `bson:"success_url,omitempty" json:"success_url,omitempty"`
	CancelURL         string             `bson:"cancel_url,omitempty" json:"cancel_url,omitempty"`
	CallbackURL       string             `bson:"callback_url,omitempty" json:"callback_url,omitempty"`
	Metadata          map[string]any     `bson:"metadata,omitempty" json:"metadata,omitempty"`
	OrangeResponse    string             `bson:"orange_response,omitempty" json:"-"`
	WebhookData       string             `bson:"webhook_data,omitempty" json:"-"`
	InvoiceID         ExternalID         `bson:"account_move_id,omitempty" json:"account_move_id,omitempty"`
	PartnerID         ExternalID         `bson:"partner_id,omitempty" json:"partner_id,omitempty"`
	URLFacture        string             `bson:"url_facture,omitempty" json:"url_facture,omitempty"`
	FacturePDF        []byte             `bson:"facture_pdf,omitempty" json:"-"`
	FactureFilename   string             `bson:"facture_filename,omitempty" json:"facture_filename,omitempty"`
	FactureKey        string             `bson:"facture_key,omitempty" json:"-"`
	FactureGenerated  *time.Time         `bson:"facture_generated_at,omitempty" json:"facture_generated_at,omitempty"`
	FactureSize       int                `bson:"facture_size,omitempty" json:"facture_size,omitempty"`
	InvoiceEmailedAt  *time.Time         `bson:"invoice_emailed_at,omitempty" json:"invoice_emailed_at,omitempty"`
	SettlementState   SettlementState    `bson:"settlement_state,omitempty" json:"settlement_state,omitempty"`
	SettlementTries   int                `bson:"settlement_attempts,omitempty" json:"settlement_attempts,omitempty"`
	SettlementError   string             `bson:"settlement_error,omitempty" json:"settlement_error,omitempty"`
	SettlementLease   *time.Time         `bson:"settlement_lease_until,omitempty" json:"-"`
	PaymentID         string             `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
	CompletedAt       *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

func (t *Transaction) FormattedAmount() string {
	return t.Amount.Format(t.Currency)
}

func (t *Transaction) HasQRCode() bool {
	return t.QRCodeBase64 != "" || t.QRCodeURL != ""
}
