package apiclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-logrelay/internal/utils"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	TokenPath   = "/api/v1/auth/token"
	RefreshPath = "/api/v1/auth/refresh"

	// refreshSkew is how close to expiry a token may get before it is replaced.
	refreshSkew = 30 * time.Second
)

// ErrAuthFailed is returned when the collector rejects the client credentials.
var ErrAuthFailed = errors.New("authentication failed")

// TokenPair is the collector's token response.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenManager holds the client's tokens and renews them. Renewals are serialized.
type TokenManager struct {
	http         *resty.Client
	clientID     string
	clientSecret string
	logger       *zap.Logger
	now          func() time.Time

	mu      sync.Mutex
	access  string
	refresh string
}

// NewTokenManager creates a TokenManager that authenticates against http's base URL.
func NewTokenManager(http *resty.Client, clientID, clientSecret string, logger *zap.Logger) *TokenManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenManager{http: http, clientID: clientID, clientSecret: clientSecret, logger: logger, now: time.Now}
}

// AccessToken returns a token that is valid for at least refreshSkew, renewing it if needed.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.access != "" && !m.expiringLocked(m.access) {
		return m.access, nil
	}
	return m.renewLocked(ctx)
}

// Invalidate renews the token after the collector rejected stale. If another caller already
// replaced stale, the current token is returned without a new round trip.
func (m *TokenManager) Invalidate(ctx context.Context, stale string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.access != "" && m.access != stale {
		return m.access, nil
	}
	m.access = ""
	return m.renewLocked(ctx)
}

func (m *TokenManager) expiringLocked(token string) bool {
	exp, err := utils.TokenExpiry(token)
	if err != nil {
		return true
	}
	return exp.Sub(m.now()) < refreshSkew
}

// renewLocked tries the refresh token first and falls back to the client credentials.
func (m *TokenManager) renewLocked(ctx context.Context) (string, error) {
	if m.refresh != "" {
		pair, err := m.request(ctx, RefreshPath, refreshRequest{RefreshToken: m.refresh})
		if err == nil {
			m.store(pair)
			m.logger.Debug("Refreshed collector access token")
			return m.access, nil
		}
		m.logger.Info("Token refresh failed, logging in again", zap.Error(err))
		m.refresh = ""
	}
	pair, err := m.request(ctx, TokenPath, tokenRequest{ClientID: m.clientID, ClientSecret: m.clientSecret})
	if err != nil {
		return "", err
	}
	m.store(pair)
	m.logger.Debug("Obtained collector access token", zap.String("client_id", m.clientID))
	return m.access, nil
}

func (m *TokenManager) store(pair *TokenPair) {
	m.access = pair.AccessToken
	if pair.RefreshToken != "" {
		m.refresh = pair.RefreshToken
	}
}

func (m *TokenManager) request(ctx context.Context, path string, body interface{}) (*TokenPair, error) {
	var pair TokenPair
	resp, err := m.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&pair).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrAuthFailed, path, resp.StatusCode())
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s returned no access token", ErrAuthFailed, path)
	}
	return &pair, nil
}
