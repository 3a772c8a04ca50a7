package orange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
)

const qrCodePath = "/api/eWallet/v4/qrcode"

type QRRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	SuccessURL  string
	CancelURL   string
	CallbackURL string
	Validity    int
	Metadata    map[string]any
}

type qrAmount struct {
	Unit  string `json:"unit"`
	Value int64  `json:"value"`
}

type qrPayload struct {
	Amount             qrAmount       `json:"amount"`
	Code               string         `json:"code"`
	Name               string         `json:"name"`
	Validity           int            `json:"validity"`
	CallbackSuccessURL string         `json:"callbackSuccessUrl,omitempty"`
	CallbackCancelURL  string         `json:"callbackCancelUrl,omitempty"`
	Reference          string         `json:"reference,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

type qrResponse struct {
	QRCode    string `json:"qrCode"`
	QRID      string `json:"qrId"`
	DeepLink  string `json:"deepLink"`
	DeepLinks struct {
		OM    string `json:"OM"`
		MAXIT string `json:"MAXIT"`
	} `json:"deepLinks"`
	ShortLink string `json:"shortLink"`
	Validity  int    `json:"validity"`
	ValidFor  struct {
		StartDateTime string `json:"startDateTime"`
		EndDateTime   string `json:"endDateTime"`
	} `json:"validFor"`
}

// QRCode is the payment artefact set issued by the provider.
type QRCode struct {
	Base64        string
	ID            string
	DeepLink      string
	DeepLinkOM    string
	DeepLinkMaxit string
	ShortLink     string
	Validity      int
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	Raw           []byte
}

func (q *QRCode) PaymentURL() string {
	if q.DeepLink != "" {
		return q.DeepLink
	}
	return q.ShortLink
}

func (c *Client) GenerateQRCode(ctx context.Context, in QRRequest) (*QRCode, error) {
	code, err := NormalizeMerchantCode(c.cfg.MerchantCode)
	if err != nil {
		return nil, err
	}

	validity := in.Validity
	if validity <= 0 {
		validity = c.cfg.QRValidity
	}
	if validity <= 0 {
		validity = 3600
	}
	if validity > config.MaxQRValidity {
		validity = config.MaxQRValidity
	}
	currency := in.Currency
	if currency == "" {
		currency = c.cfg.DefaultCurrency
	}
	callback := in.CallbackURL
	if callback == "" {
		callback = c.cfg.CallbackURL
	}

	payload := qrPayload{
		Amount:             qrAmount{Unit: currency, Value: in.Amount.IntPart()},
		Code:               code,
		Name:               c.cfg.MerchantName,
		Validity:           validity,
		CallbackSuccessURL: in.SuccessURL,
		CallbackCancelURL:  in.CancelURL,
		Reference:          in.Reference,
		Metadata:           in.Metadata,
	}

	body, _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   qrCodePath,
		body:   payload,
		headers: map[string]string{
			"X-Callback-Url": callback,
			"X-Api-Key":      c.cfg.APIKey,
		},
		accepted: []int{http.StatusOK, http.StatusCreated},
	})
	if err != nil {
		return nil, err
	}

	var resp qrResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode qrcode response: %w", err)
	}
	if resp.QRCode == "" && resp.DeepLink == "" && resp.QRID == "" {
		return nil, fmt.Errorf("qrcode response carries no payment artefact: %s", string(body))
	}

	qr := &QRCode{
		Base64:        resp.QRCode,
		ID:            resp.QRID,
		DeepLink:      resp.DeepLink,
		DeepLinkOM:    resp.DeepLinks.OM,
		DeepLinkMaxit: resp.DeepLinks.MAXIT,
		ShortLink:     resp.ShortLink,
		Validity:      resp.Validity,
		ValidFrom:     parseProviderTime(resp.ValidFor.StartDateTime),
		ValidUntil:    parseProviderTime(resp.ValidFor.EndDateTime),
		Raw:           body,
	}
	if qr.Validity == 0 {
		qr.Validity = validity
	}
	c.logger.InfoContext(ctx, "qrcode generated", "qr_id", qr.ID, "reference", in.Reference)
	return qr, nil
}

var providerTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05"}

// parseProviderTime returns nil for empty or unparseable values.
func parseProviderTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range providerTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ParseTime exposes the provider timestamp formats to webhook handling.
func ParseTime(s string) *time.Time { return parseProviderTime(s) }
