package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/invoicepdf"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/ledger"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/mailer"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/orange"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/storage"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/store"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeProvider struct {
	mu        sync.Mutex
	cfg       config.Provider
	qrCalls   int
	lastQR    orange.QRRequest
	qrErr     error
	status    *orange.TransactionStatus
	statusErr error
	callback  string
	cbErr     error
}

func (f *fakeProvider) Config() config.Provider { return f.cfg }

func (f *fakeProvider) Token(context.Context) (string, error) { return "tok", nil }

func (f *fakeProvider) GenerateQRCode(_ context.Context, in orange.QRRequest) (*orange.QRCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qrCalls++
	f.lastQR = in
	if f.qrErr != nil {
		return nil, f.qrErr
	}
	from := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	until := from.Add(time.Hour)
	return &orange.QRCode{
		Base64:        "iVBORw0KGgoAAAANSUhEUgAAAAE=",
		ID:            fmt.Sprintf("qr-%d", f.qrCalls),
		DeepLink:      "https://sugu.orange-sonatel.com/mp/abc",
		DeepLinkOM:    "orangemoney://pay/abc",
		DeepLinkMaxit: "maxit://pay/abc",
		ShortLink:     "https://om.sn/abc",
		Validity:      3600,
		ValidFrom:     &from,
		ValidUntil:    &until,
		Raw:           []byte(`{"qrId":"qr"}`),
	}, nil
}

func (f *fakeProvider) TransactionStatus(_ context.Context, _ string) (*orange.TransactionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func (f *fakeProvider) PublicKey(context.Context) (*orange.PublicKey, error) {
	return &orange.PublicKey{Key: "MIIBIjANBg", KeyID: "k1", KeyType: "RSA", KeySize: 2048}, nil
}

func (f *fakeProvider) RegisterCallback(context.Context) (string, error) {
	return f.callback, f.cbErr
}

type fakeConverter struct{}

func (fakeConverter) Convert(context.Context, []byte) ([]byte, error) {
	return []byte("%PDF-1.4 receipt"), nil
}

type harness struct {
	stores     store.Stores
	ledger     *ledger.Memory
	provider   *fakeProvider
	mail       *mailer.Mock
	settlement *SettlementService
	sync       *StatusSync
	payments   *PaymentService
	webhooks   *WebhookService
}

func providerConfig() config.Provider {
	return config.Provider{
		Version:         1,
		Active:          true,
		ClientID:        "client",
		ClientSecret:    "secret",
		BaseURL:         config.DefaultBaseURL,
		MerchantCode:    "123456",
		MerchantName:    "CCTS",
		CallbackURL:     "https://api.ccts.sn/orange/webhook",
		DefaultCurrency: "XOF",
		QRValidity:      3600,
		SuccessURL:      config.DefaultSuccessURL,
	}
}

func seedLedger(t *testing.T, l *ledger.Memory, withJournal bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, l.SaveCustomer(ctx, models.Customer{ID: "7", Name: "Awa Ndiaye", Email: "awa@example.sn"}))
	require.NoError(t, l.SaveInvoice(ctx, models.Invoice{
		ID:             "42",
		Number:         "INV/2024/0042",
		PartnerID:      "7",
		Currency:       "XOF",
		AmountTotal:    models.MoneyFromInt(5000),
		AmountResidual: models.MoneyFromInt(5000),
		State:          "posted",
		PaymentState:   models.InvoiceNotPaid,
		ReceivableLines: []models.LedgerLine{{
			ID:          "inv-42-1",
			AccountType: models.AccountReceivable,
			Debit:       models.MoneyFromInt(5000),
			Residual:    models.MoneyFromInt(5000),
		}},
	}))
	if withJournal {
		require.NoError(t, l.SaveJournal(ctx, models.Journal{ID: "j-cash", Code: ledger.CashJournalCode, Name: "Caisse", Type: "cash"}))
	}
	require.NoError(t, l.SavePaymentMethod(ctx, models.PaymentMethod{ID: "pm-in", Code: "manual", PaymentType: ledger.PaymentTypeIn}))
}

func newHarness(t *testing.T, withJournal bool) *harness {
	t.Helper()
	h := &harness{
		stores:   store.NewMemory(),
		ledger:   ledger.NewMemory(),
		provider: &fakeProvider{cfg: providerConfig()},
		mail:     &mailer.Mock{},
	}
	seedLedger(t, h.ledger, withJournal)

	h.settlement = NewSettlementService(SettlementDeps{
		Transactions: h.stores.Transactions,
		Ledger:       h.ledger,
		Renderer:     invoicepdf.NewRenderer(fakeConverter{}),
		Storage:      storage.NewLocal(t.TempDir(), "/uploads", "http://localhost:8080"),
		Mailer:       h.mail,
		Company:      config.Company{Name: "CCTS"},
		SMTP:         config.SMTP{Host: "smtp.test", Port: "587", From: "no-reply@ccts.sn", FromName: "CCTS", ExtraRecipient: "contact@ccts.sn"},
		MaxAttempts:  3,
		Logger:       testLogger,
	})
	h.sync = NewStatusSync(h.stores.Transactions, h.settlement.Settle, testLogger)
	h.payments = NewPaymentService(h.stores.Transactions, h.ledger, h.provider, h.sync, testLogger)
	h.payments.now = func() time.Time { return time.Unix(1709647200, 0) }
	h.webhooks = NewWebhookService(h.stores.Transactions, h.stores.Deliveries, h.sync, testLogger)
	return h
}

func initiateRequest(id string) InitiateRequest {
	return InitiateRequest{
		TransactionID: id,
		InvoiceID:     "42",
		PartnerID:     "7",
		PhoneNumber:   "771234567",
		Amount:        models.MoneyFromInt(5000),
		Currency:      "XOF",
	}
}

func (h *harness) initiate(t *testing.T, id string) *models.Transaction {
	t.Helper()
	res, err := h.payments.Initiate(context.Background(), initiateRequest(id))
	require.NoError(t, err)
	return res.Transaction
}

func webhookBody(transactionID, status, providerTxID string) []byte {
	return []byte(fmt.Sprintf(`{
		"amount": {"unit": "XOF", "value": 5000},
		"customer": {"idType": "MSISDN", "id": "771234567"},
		"partner": {"idType": "CODE", "id": "123456"},
		"channel": "QRCODE",
		"paymentMethod": "QRCODE",
		"status": %q,
		"transactionId": %q,
		"type": "MERCHANT_PAYMENT",
		"performedAt": "2024-03-05T14:07:09Z",
		"metadata": {"transaction_id": %q}
	}`, status, providerTxID, transactionID))
}
