package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/middleware"
)

type RouterConfig struct {
	Payments  *PaymentHandler
	Webhooks  *WebhookHandler
	JWTSecret string
	// UploadDir is served under UploadPrefix when both are set.
	UploadDir    string
	UploadPrefix string
	// CORSOrigins defaults to any origin.
	CORSOrigins []string
	Logger      *slog.Logger
}

func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.Recovery(cfg.Logger), middleware.Logger(cfg.Logger))

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	api := router.PathPrefix("/api/payment/orange").Subrouter()
	api.Use(gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(origins),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID"}),
		gorillahandlers.ExposedHeaders([]string{"X-Request-ID"}),
	))
	// OPTIONS is routed so preflight requests reach the CORS middleware.
	api.HandleFunc("/initiate", cfg.Payments.Initiate).Methods("POST", "OPTIONS")
	api.HandleFunc("/token/{pay_token}", cfg.Payments.ByPayToken).Methods("GET", "OPTIONS")
	api.HandleFunc("/status/{transaction_id}", cfg.Payments.Status).Methods("GET", "OPTIONS")
	api.HandleFunc("/invoice/{facture_id}/summary", cfg.Payments.InvoiceSummary).Methods("GET", "OPTIONS")

	auth := middleware.RequireJWT(cfg.JWTSecret)
	api.Handle("/partner/{partner_id}/transactions", auth(http.HandlerFunc(cfg.Payments.PartnerTransactions))).Methods("GET", "OPTIONS")
	api.Handle("/stats", auth(http.HandlerFunc(cfg.Payments.Stats))).Methods("GET", "OPTIONS")

	router.HandleFunc("/orange/webhook", cfg.Webhooks.Handle).Methods("POST")

	if cfg.UploadDir != "" && cfg.UploadPrefix != "" {
		prefix := "/" + strings.Trim(cfg.UploadPrefix, "/") + "/"
		router.PathPrefix(prefix).Handler(http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.UploadDir)))).Methods("GET", "HEAD")
	}
	return router
}
