package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

// Config describes how to reach and authenticate against the collector.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client is an authenticated JSON client for the collector.
type Client struct {
	http   *resty.Client
	tokens *TokenManager
	logger *zap.Logger
}

// New creates a Client. Requests carry a bearer token obtained with the configured credentials.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:   rc,
		tokens: NewTokenManager(rc, cfg.ClientID, cfg.ClientSecret, logger),
		logger: logger,
	}
}

// Tokens exposes the token manager.
func (c *Client) Tokens() *TokenManager { return c.tokens }

// Post sends body to path. A 401 response renews the token and retries the request once.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*resty.Response, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, path, token, body)
	if err != nil || resp.StatusCode() != http.StatusUnauthorized {
		return resp, err
	}

	c.logger.Debug("Collector rejected access token, renewing", zap.String("path", path))
	token, err = c.tokens.Invalidate(ctx, token)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, path, token, body)
}

func (c *Client) post(ctx context.Context, path, token string, body interface{}) (*resty.Response, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}
	return resp, nil
}
