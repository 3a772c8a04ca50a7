package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/apperr"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/orange"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/store"
)

// ProviderAdmin holds the operator actions on the provider account.
type ProviderAdmin struct {
	provider Provider
	state    store.ProviderStateStore
	logger   *slog.Logger
}

func NewProviderAdmin(provider Provider, state store.ProviderStateStore, logger *slog.Logger) *ProviderAdmin {
	return &ProviderAdmin{provider: provider, state: state, logger: logger}
}

type ConnectionCheck struct {
	OK        bool      `json:"ok"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Message   string    `json:"message"`
}

func (a *ProviderAdmin) stateID() (string, string, int) {
	cfg := a.provider.Config()
	return models.ProviderStateID(cfg.ClientID, cfg.Version), cfg.ClientID, cfg.Version
}

// TestConnection fetches a token with the configured credentials.
func (a *ProviderAdmin) TestConnection(ctx context.Context) (*ConnectionCheck, error) {
	if !a.provider.Config().Ready() {
		return nil, apperr.InvalidErr("Orange Money configuration not found")
	}
	if _, err := a.provider.Token(ctx); err != nil {
		a.logger.ErrorContext(ctx, "connection test failed", "error", err)
		return &ConnectionCheck{OK: false, Message: err.Error()}, nil
	}
	check := &ConnectionCheck{OK: true, Message: "Connexion réussie"}
	id, _, _ := a.stateID()
	if st, err := a.state.GetState(ctx, id); err == nil && st.TokenExpiresAt != nil {
		check.ExpiresAt = *st.TokenExpiresAt
	}
	return check, nil
}

func (a *ProviderAdmin) FetchPublicKey(ctx context.Context) (*orange.PublicKey, error) {
	key, err := a.provider.PublicKey(ctx)
	if err != nil {
		return nil, apperr.UpstreamErr("Failed to fetch public key", err)
	}
	id, clientID, version := a.stateID()
	if err := a.state.SavePublicKey(ctx, id, clientID, version, key.Key, key.KeyID); err != nil {
		return nil, fmt.Errorf("failed to save public key: %w", err)
	}
	a.logger.InfoContext(ctx, "public key stored", "key_id", key.KeyID)
	return key, nil
}

// RegisterWebhook registers the callback URL with the provider and keeps the
// provider's answer for later inspection.
func (a *ProviderAdmin) RegisterWebhook(ctx context.Context) (string, error) {
	if a.provider.Config().CallbackURL == "" {
		return "", apperr.InvalidErr("OM_CALLBACK_URL is not configured")
	}
	summary, err := a.provider.RegisterCallback(ctx)
	id, clientID, version := a.stateID()
	status := summary
	if err != nil {
		status = "error: " + err.Error()
	}
	if saveErr := a.state.SaveWebhookStatus(ctx, id, clientID, version, status); saveErr != nil {
		a.logger.ErrorContext(ctx, "failed to save webhook status", "error", saveErr)
	}
	if err != nil {
		return "", apperr.UpstreamErr("Failed to register webhook", err)
	}
	a.logger.InfoContext(ctx, "webhook registered", "status", summary)
	return summary, nil
}
