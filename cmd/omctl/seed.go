package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/app"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/ledger"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

// seedFile is the YAML layout accepted by `omctl seed`:
//
//	customers:
//	  - {id: "7", name: Awa Ndiaye, email: awa@example.sn}
//	invoices:
//	  - {id: "42", number: INV/2024/0042, partner_id: "7", amount: "5000"}
//	journals:
//	  - {id: j-cash, code: CSH1, name: Caisse, type: cash}
//	payment_methods:
//	  - {id: pm-in, code: manual, name: Manual}
type seedFile struct {
	Customers []struct {
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
		Phone string `yaml:"phone"`
	} `yaml:"customers"`
	Invoices []struct {
		ID        string `yaml:"id"`
		Number    string `yaml:"number"`
		PartnerID string `yaml:"partner_id"`
		Currency  string `yaml:"currency"`
		Amount    string `yaml:"amount"`
	} `yaml:"invoices"`
	Journals []struct {
		ID   string `yaml:"id"`
		Code string `yaml:"code"`
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	} `yaml:"journals"`
	PaymentMethods []struct {
		ID   string `yaml:"id"`
		Code string `yaml:"code"`
		Name string `yaml:"name"`
	} `yaml:"payment_methods"`
}

func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// apply writes the fixture into the ledger. Each invoice gets a single open
// receivable line for its full amount.
func (f *seedFile) apply(ctx context.Context, l ledger.Seeder) (map[string]int, error) {
	now := time.Now().UTC()
	for _, c := range f.Customers {
		if err := l.SaveCustomer(ctx, models.Customer{
			ID: models.ExternalID(c.ID), Name: c.Name, Email: c.Email, Phone: c.Phone, CreatedAt: now,
		}); err != nil {
			return nil, fmt.Errorf("customer %s: %w", c.ID, err)
		}
	}
	for _, inv := range f.Invoices {
		amount, err := models.ParseMoney(inv.Amount)
		if err != nil {
			return nil, fmt.Errorf("invoice %s: %w", inv.ID, err)
		}
		currency := inv.Currency
		if currency == "" {
			currency = "XOF"
		}
		if err := l.SaveInvoice(ctx, models.Invoice{
			ID:             models.ExternalID(inv.ID),
			Number:         inv.Number,
			PartnerID:      models.ExternalID(inv.PartnerID),
			Currency:       currency,
			AmountTotal:    amount,
			AmountResidual: amount,
			State:          "posted",
			PaymentState:   models.InvoiceNotPaid,
			ReceivableLines: []models.LedgerLine{{
				ID:          "inv-" + inv.ID + "-1",
				AccountType: models.AccountReceivable,
				Debit:       amount,
				Residual:    amount,
			}},
			InvoiceDate: now,
			UpdatedAt:   now,
		}); err != nil {
			return nil, fmt.Errorf("invoice %s: %w", inv.ID, err)
		}
	}
	for _, j := range f.Journals {
		if err := l.SaveJournal(ctx, models.Journal{ID: j.ID, Code: j.Code, Name: j.Name, Type: j.Type}); err != nil {
			return nil, fmt.Errorf("journal %s: %w", j.ID, err)
		}
	}
	for _, m := range f.PaymentMethods {
		if err := l.SavePaymentMethod(ctx, models.PaymentMethod{
			ID: m.ID, Code: m.Code, Name: m.Name, PaymentType: ledger.PaymentTypeIn,
		}); err != nil {
			return nil, fmt.Errorf("payment method %s: %w", m.ID, err)
		}
	}
	return map[string]int{
		"customers":       len(f.Customers),
		"invoices":        len(f.Invoices),
		"journals":        len(f.Journals),
		"payment_methods": len(f.PaymentMethods),
	}, nil
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file.yaml]",
		Short: "Load customers, invoices, journals and payment methods into the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadSeedFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				counts, err := f.apply(ctx, a.Ledger)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), counts)
			})
		},
	}
}
