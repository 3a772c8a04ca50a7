package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/apperr"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/middleware"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// writeError answers {"success":false,"error":...} with the status of the
// error kind. Internal errors are logged and never exposed.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	writeErrorStatus(w, r, logger, apperr.HTTPStatus(err), err)
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, err error) {
	msg := apperr.PublicMessage(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   msg,
		"message": msg,
	})
}
