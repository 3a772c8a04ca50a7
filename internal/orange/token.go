package orange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

const (
	tokenPath          = "/oauth/v1/token"
	defaultTokenExpiry = 300 * time.Second
	tokenSafetyMargin  = 30 * time.Second
)

// TokenStore persists the cached token so restarts reuse it.
type TokenStore interface {
	LoadToken(ctx context.Context, stateID string) (token string, expiresAt time.Time, err error)
	SaveToken(ctx context.Context, stateID, clientID string, version int, token string, expiresAt time.Time) error
}

// TokenSource caches the client-credentials token. A mutex serializes refreshes
// so concurrent callers share a single token request.
type TokenSource struct {
	cfg    config.Provider
	oauth  clientcredentials.Config
	http   *http.Client
	store  TokenStore
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	loaded    bool
}

func NewTokenSource(cfg config.Provider, httpClient *http.Client, store TokenStore, logger *slog.Logger) *TokenSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenSource{
		cfg: cfg,
		oauth: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.BaseURL + tokenPath,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		http:   httpClient,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *TokenSource) stateID() string {
	return models.ProviderStateID(s.cfg.ClientID, s.cfg.Version)
}

func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded && s.store != nil {
		s.loaded = true
		token, exp, err := s.store.LoadToken(ctx, s.stateID())
		if err == nil {
			s.token, s.expiresAt = token, exp
		}
	}

	if s.token != "" && s.now().Before(s.expiresAt) {
		return s.token, nil
	}

	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return "", errors.New("orange money client credentials are not configured")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.http)
	tok, err := s.oauth.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", &APIError{Endpoint: tokenPath, StatusCode: rerr.Response.StatusCode, Body: string(rerr.Body)}
		}
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}

	now := s.now()
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = now.Add(defaultTokenExpiry)
	}
	s.token = tok.AccessToken
	s.expiresAt = expiry.Add(-tokenSafetyMargin)

	if s.store != nil {
		if err := s.store.SaveToken(ctx, s.stateID(), s.cfg.ClientID, s.cfg.Version, s.token, s.expiresAt); err != nil {
			s.logger.WarnContext(ctx, "failed to persist access token", "err", err)
		}
	}
	s.logger.InfoContext(ctx, "orange access token refreshed", "expires_at", s.expiresAt)
	return s.token, nil
}

// ExpiresAt reports when the cached token stops being used.
func (s *TokenSource) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}
