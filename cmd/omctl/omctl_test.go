package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/ledger"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

const fixture = `
customers:
  - {id: "7", name: Awa Ndiaye, email: awa@example.sn}
invoices:
  - {id: "42", number: INV/2024/0042, partner_id: "7", amount: 5000}
journals:
  - {id: j-cash, code: CSH1, name: Caisse, type: cash}
payment_methods:
  - {id: pm-in, code: manual, name: Manual}
`

func TestSeedFile_Apply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	f, err := loadSeedFile(path)
	require.NoError(t, err)

	l := ledger.NewMemory()
	ctx := context.Background()
	counts, err := f.apply(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["invoices"])

	inv, err := l.GetInvoice(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "5000", inv.AmountTotal.String())
	assert.Equal(t, "XOF", inv.Currency)
	require.Len(t, inv.ReceivableLines, 1)
	assert.Equal(t, models.AccountReceivable, inv.ReceivableLines[0].AccountType)

	j, err := l.FindCashJournal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "j-cash", j.ID)

	_, err = l.FindInboundPaymentMethod(ctx)
	require.NoError(t, err)
}

func TestPrintResult(t *testing.T) {
	defer func() { outputFormat = "json" }()
	v := map[string]any{"amount": models.MoneyFromInt(5000), "status": "completed"}

	var buf bytes.Buffer
	outputFormat = "json"
	require.NoError(t, printResult(&buf, v))
	assert.JSONEq(t, `{"amount":5000,"status":"completed"}`, buf.String())

	buf.Reset()
	outputFormat = "yaml"
	require.NoError(t, printResult(&buf, v))
	assert.Equal(t, "amount: 5000\nstatus: completed\n", buf.String())

	outputFormat = "xml"
	assert.Error(t, checkOutputFormat())
}
