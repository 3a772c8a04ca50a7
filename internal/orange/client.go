package orange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/config"
)

const defaultTimeout = 30 * time.Second

var ErrUnexpectedStatus = errors.New("unexpected response status from Orange Money")

// APIError is returned when the provider answers with a status outside the
// accepted set for an endpoint.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool { return target == ErrUnexpectedStatus }

// Client talks to the Orange Money REST API for one provider configuration.
type Client struct {
	cfg    config.Provider
	http   *http.Client
	tokens *TokenSource
	logger *slog.Logger
}

func NewClient(cfg config.Provider, store TokenStore, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		tokens: NewTokenSource(cfg, httpClient, store, logger),
		logger: logger,
	}
}

func (c *Client) Config() config.Provider { return c.cfg }

// Token returns a bearer token, fetching a new one when the cached one is
// about to expire.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.tokens.Token(ctx)
}

type request struct {
	method   string
	path     string
	body     any
	headers  map[string]string
	accepted []int
	retries  int
}

// do sends an authenticated JSON request and returns the raw response body.
// Only requests with retries > 0 are retried, and only on transport errors.
func (c *Client) do(ctx context.Context, r request) ([]byte, int, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, 0, err
	}

	var payload []byte
	if r.body != nil {
		payload, err = json.Marshal(r.body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal %s request: %w", r.path, err)
		}
		c.logger.DebugContext(ctx, "orange request", "method", r.method, "path", r.path, "body", string(maskSensitiveFields(payload)))
	}

	attempts := r.retries + 1
	var resp *http.Response
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, r.method, c.cfg.BaseURL+r.path, bytes.NewReader(payload))
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create %s request: %w", r.path, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range r.headers {
			if v != "" {
				req.Header.Set(k, v)
			}
		}

		resp, err = c.http.Do(req)
		if err == nil {
			break
		}
		c.logger.WarnContext(ctx, "orange request failed", "path", r.path, "attempt", attempt, "err", err)
		if attempt == attempts || ctx.Err() != nil {
			return nil, 0, fmt.Errorf("failed to call %s: %w", r.path, err)
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read %s response: %w", r.path, err)
	}

	for _, code := range r.accepted {
		if resp.StatusCode == code {
			return body, resp.StatusCode, nil
		}
	}
	c.logger.ErrorContext(ctx, "orange request rejected", "path", r.path, "status", resp.StatusCode, "body", string(body))
	return body, resp.StatusCode, &APIError{Endpoint: r.path, StatusCode: resp.StatusCode, Body: string(body)}
}
