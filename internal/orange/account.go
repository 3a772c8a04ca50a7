package orange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
)

const (
	publicKeysPath       = "/api/account/v1/publicKeys"
	merchantCallbackPath = "/api/notification/v1/merchantcallback"
)

type PublicKey struct {
	Key     string `json:"key"`
	KeyID   string `json:"keyId"`
	KeyType string `json:"keyType,omitempty"`
	KeySize int    `json:"keySize,omitempty"`
}

func (c *Client) PublicKey(ctx context.Context) (*PublicKey, error) {
	body, _, err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     publicKeysPath,
		accepted: []int{http.StatusOK},
		retries:  2,
	})
	if err != nil {
		return nil, err
	}
	var key PublicKey
	if err := json.Unmarshal(body, &key); err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	return &key, nil
}

type callbackRegistration struct {
	APIKey      string `json:"apiKey"`
	CallbackURL string `json:"callbackUrl"`
	Code        string `json:"code"`
	Name        string `json:"name"`
}

// RegisterCallback registers the webhook URL with the provider. The returned
// summary ("<status> - <body>") is meant to be stored even when err != nil.
func (c *Client) RegisterCallback(ctx context.Context) (string, error) {
	code, err := NormalizeMerchantCode(c.cfg.MerchantCode)
	if err != nil {
		return "", err
	}
	if c.cfg.CallbackURL == "" {
		return "", fmt.Errorf("callback url is not configured")
	}
	body, status, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   merchantCallbackPath,
		body: callbackRegistration{
			APIKey:      c.cfg.APIKey,
			CallbackURL: c.cfg.CallbackURL,
			Code:        code,
			Name:        merchantName(c.cfg),
		},
		accepted: []int{http.StatusOK, http.StatusCreated, http.StatusAccepted},
	})
	summary := ""
	if status != 0 {
		summary = fmt.Sprintf("%d - %s", status, string(body))
	}
	if err != nil {
		return summary, err
	}
	c.logger.InfoContext(ctx, "merchant callback registered", "callback_url", c.cfg.CallbackURL, "status", status)
	return summary, nil
}

func merchantName(cfg config.Provider) string {
	if cfg.MerchantName != "" {
		return cfg.MerchantName
	}
	return cfg.Name
}
