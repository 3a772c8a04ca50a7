package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/apperr"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/orange"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/services"
)

type PaymentHandler struct {
	service *services.PaymentService
	logger  *slog.Logger
}

func NewPaymentHandler(service *services.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

type initiateResponse struct {
	Success         bool         `json:"success"`
	Existe          bool         `json:"existe,omitempty"`
	TransactionID   string       `json:"transaction_id"`
	Reference       string       `json:"reference"`
	PayToken        string       `json:"pay_token"`
	PaymentURL      string       `json:"payment_url"`
	DeepLink        string       `json:"deep_link,omitempty"`
	DeepLinkOM      string       `json:"deep_link_om,omitempty"`
	DeepLinkMaxit   string       `json:"deep_link_maxit,omitempty"`
	ShortLink       string       `json:"short_link,omitempty"`
	QRCodeBase64    string       `json:"qr_code_base64,omitempty"`
	QRID            string       `json:"qr_id,omitempty"`
	ValidFrom       *time.Time   `json:"valid_from,omitempty"`
	ValidUntil      *time.Time   `json:"valid_until,omitempty"`
	ValiditySeconds int          `json:"validity_seconds,omitempty"`
	Status          string       `json:"status"`
	Amount          models.Money `json:"amount"`
	Currency        string       `json:"currency"`
}

func newInitiateResponse(res *services.InitiateResult) initiateResponse {
	tx := res.Transaction
	return initiateResponse{
		Success:         true,
		Existe:          res.Existing,
		TransactionID:   tx.TransactionID,
		Reference:       tx.Reference,
		PayToken:        tx.PayToken,
		PaymentURL:      tx.PaymentURL,
		DeepLink:        tx.DeepLink,
		DeepLinkOM:      tx.DeepLinkOM,
		DeepLinkMaxit:   tx.DeepLinkMaxit,
		ShortLink:       tx.ShortLink,
		QRCodeBase64:    tx.QRCodeBase64,
		QRID:            tx.QRID,
		ValidFrom:       tx.ValidFrom,
		ValidUntil:      tx.ValidUntil,
		ValiditySeconds: tx.ValiditySeconds,
		Status:          string(tx.Status),
		Amount:          tx.Amount,
		Currency:        tx.Currency,
	}
}

// Initiate handles POST /api/payment/orange/initiate
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req services.InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, apperr.InvalidErr("Invalid JSON"))
		return
	}

	res, err := h.service.Initiate(r.Context(), req)
	if err != nil {
		// provider failures are reported as a bad request on this route
		status := apperr.HTTPStatus(err)
		if apperr.IsKind(err, apperr.Upstream) {
			status = http.StatusBadRequest
		}
		writeErrorStatus(w, r, h.logger, status, err)
		return
	}
	writeJSON(w, http.StatusOK, newInitiateResponse(res))
}

type livePayment struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
}

func newLivePayment(s *orange.TransactionStatus) *livePayment {
	if s == nil {
		return nil
	}
	return &livePayment{TransactionID: s.TransactionID, Status: s.Status, Reason: s.Reason}
}

// ByPayToken handles GET /api/payment/orange/token/{pay_token}
func (h *PaymentHandler) ByPayToken(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ByPayToken(r.Context(), mux.Vars(r)["pay_token"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"payment":     newLivePayment(res.Live),
		"transaction": res.Transaction,
	})
}

// Status handles GET /api/payment/orange/status/{transaction_id}
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	tx, err := h.service.RefreshStatus(r.Context(), mux.Vars(r)["transaction_id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "transaction": tx})
}

type partnerTransaction struct {
	models.Transaction
	FacturePDFBase64 string `json:"facture_pdf_base64,omitempty"`
}

// PartnerTransactions handles GET /api/payment/orange/partner/{partner_id}/transactions
func (h *PaymentHandler) PartnerTransactions(w http.ResponseWriter, r *http.Request) {
	partnerID := models.ExternalID(mux.Vars(r)["partner_id"])
	txs, err := h.service.PartnerTransactions(r.Context(), partnerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]partnerTransaction, 0, len(txs))
	for _, tx := range txs {
		pt := partnerTransaction{Transaction: tx}
		if len(tx.FacturePDF) > 0 {
			pt.FacturePDFBase64 = base64.StdEncoding.EncodeToString(tx.FacturePDF)
		}
		out = append(out, pt)
	}
	stats := services.SummarizePartner(txs)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"partner_id":   partnerID,
		"count":        len(out),
		"total_amount": stats.TotalAmount,
		"success_rate": stats.SuccessRate,
		"transactions": out,
	})
}

// InvoiceSummary handles GET /api/payment/orange/invoice/{facture_id}/summary
func (h *PaymentHandler) InvoiceSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.InvoiceSummary(r.Context(), models.ExternalID(mux.Vars(r)["facture_id"]))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": sum})
}

// Stats handles GET /api/payment/orange/stats
func (h *PaymentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}
