// Package invoicepdf renders the payment receipt attached to a completed
// transaction.
package invoicepdf

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"html/template"
	"time"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

const dateLayout = "02/01/2006 15:04:05"

// Converter turns an HTML document into PDF bytes.
type Converter interface {
	Convert(ctx context.Context, html []byte) ([]byte, error)
}

// Receipt is the data printed on the receipt.
type Receipt struct {
	Company       config.Company
	Reference     string
	Number        string
	PaidAt        string
	TransactionID string
	OrangeID      string
	Phone         string
	Description   string
	InvoiceName   string
	ClientName    string
	ClientEmail   string
	Total         string
}

// NewReceipt builds the receipt for tx. inv and customer are optional.
func NewReceipt(company config.Company, tx *models.Transaction, inv *models.Invoice, customer *models.Customer) Receipt {
	paidAt := time.Now()
	if tx.CompletedAt != nil {
		paidAt = *tx.CompletedAt
	}
	r := Receipt{
		Company:       company,
		Reference:     tx.Reference,
		Number:        fmt.Sprintf("ORANGE-%06d", sequence(tx)),
		PaidAt:        paidAt.Format(dateLayout),
		TransactionID: tx.TransactionID,
		OrangeID:      tx.OrangeID,
		Phone:         tx.CustomerMSISDN,
		Description:   tx.Description,
		Total:         tx.FormattedAmount(),
	}
	if inv != nil {
		r.InvoiceName = inv.Number
	}
	if customer != nil {
		r.ClientName = customer.Name
		r.ClientEmail = customer.Email
	}
	return r
}

// sequence is the insertion counter embedded in the transaction's ObjectID.
func sequence(tx *models.Transaction) uint32 {
	id := tx.ID
	return binary.BigEndian.Uint32(append([]byte{0}, id[9:12]...))
}

// Filename is the attachment name for a receipt generated at now.
func Filename(transactionID string, now time.Time) string {
	return fmt.Sprintf("facture_orange_%s_%s.pdf", transactionID, now.Format("20060102_150405"))
}

type Renderer struct {
	tmpl *template.Template
	conv Converter
}

func NewRenderer(conv Converter) *Renderer {
	return &Renderer{
		tmpl: template.Must(template.New("receipt").Parse(receiptTemplate)),
		conv: conv,
	}
}

func (r *Renderer) HTML(receipt Receipt) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, receipt); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) PDF(ctx context.Context, receipt Receipt) ([]byte, error) {
	html, err := r.HTML(receipt)
	if err != nil {
		return nil, err
	}
	pdf, err := r.conv.Convert(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("failed to convert receipt %s: %w", receipt.TransactionID, err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("empty pdf for receipt %s", receipt.TransactionID)
	}
	return pdf, nil
}
