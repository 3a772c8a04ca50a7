package handlers

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/apperr"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/services"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	service *services.WebhookService
	token   string
	logger  *slog.Logger
}

// NewWebhookHandler checks the x-callback-token header against token when
// token is set.
func NewWebhookHandler(service *services.WebhookService, token string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, token: token, logger: logger}
}

// Handle handles POST /orange/webhook
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.token != "" {
		got := r.Header.Get("x-callback-token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			h.logger.WarnContext(r.Context(), "webhook rejected, bad callback token", "remote_addr", r.RemoteAddr)
			writeError(w, r, h.logger, apperr.UnauthorizedErr("Unauthorized webhook"))
			return
		}
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, r, h.logger, services.ErrInvalidJSON)
		return
	}

	res, err := h.service.Handle(r.Context(), raw)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	body := map[string]any{
		"success":        true,
		"status":         res.Status,
		"transaction_id": res.TransactionID,
	}
	if res.Duplicate {
		body["duplicate"] = true
	}
	if res.Ignored {
		body["ignored"] = true
	}
	writeJSON(w, http.StatusOK, body)
}
