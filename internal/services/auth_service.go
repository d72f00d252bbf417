package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-logrelay/internal/models"
	"go-logrelay/internal/repositories"
	"go-logrelay/internal/utils"

	"go.uber.org/zap"
)

var (
	ErrClientNotFound     = errors.New("client not found")
	ErrInvalidCredentials = errors.New("invalid client id or secret")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrRegistrationFailed = errors.New("failed to register client")
)

// TokenResult is returned by IssueToken and Refresh.
type TokenResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // Seconds until the access token expires
}

// AuthService defines the interface for client authentication
type AuthService interface {
	IssueToken(ctx context.Context, clientID, secret string) (*TokenResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResult, error)
	RegisterClient(ctx context.Context, clientID, name, secret string) error
	// EnsureBootstrapClient registers the configured client if it does not exist yet.
	EnsureBootstrapClient(ctx context.Context, clientID, name, secret string) error
}

type authServiceImpl struct {
	clientRepo repositories.ClientRepository
	logger     *zap.Logger
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthService creates a new AuthService
func NewAuthService(clientRepo repositories.ClientRepository, logger *zap.Logger, jwtSecret string, accessTTL, refreshTTL time.Duration) AuthService {
	return &authServiceImpl{
		clientRepo: clientRepo,
		logger:     logger,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// RegisterClient stores a new client with a bcrypt-hashed secret
func (s *authServiceImpl) RegisterClient(ctx context.Context, clientID, name, secret string) error {
	hashed, err := utils.HashPassword(secret)
	if err != nil {
		s.logger.Error("Failed to hash client secret", zap.String("client_id", clientID), zap.Error(err))
		return ErrRegistrationFailed
	}
	_, err = s.clientRepo.CreateClient(ctx, &models.APIClient{ClientID: clientID, Name: name, SecretHash: hashed})
	if err != nil {
		if errors.Is(err, repositories.ErrClientExists) {
			return err
		}
		s.logger.Error("Failed to create client in database", zap.String("client_id", clientID), zap.Error(err))
		return ErrRegistrationFailed
	}
	s.logger.Info("Client registered successfully", zap.String("client_id", clientID))
	return nil
}

func (s *authServiceImpl) EnsureBootstrapClient(ctx context.Context, clientID, name, secret string) error {
	if clientID == "" {
		return nil
	}
	err := s.RegisterClient(ctx, clientID, name, secret)
	if errors.Is(err, repositories.ErrClientExists) {
		s.logger.Debug("Bootstrap client already registered", zap.String("client_id", clientID))
		return nil
	}
	return err
}

// IssueToken checks the client credentials and returns a fresh token pair
func (s *authServiceImpl) IssueToken(ctx context.Context, clientID, secret string) (*TokenResult, error) {
	client, err := s.clientRepo.FindByClientID(ctx, clientID)
	if err != nil {
		s.logger.Error("Error finding client during token request", zap.String("client_id", clientID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if client == nil {
		s.logger.Warn("Token request failed: client not found", zap.String("client_id", clientID))
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(secret, client.SecretHash) {
		s.logger.Warn("Token request failed: invalid secret", zap.String("client_id", clientID))
		return nil, ErrInvalidCredentials
	}
	return s.issuePair(clientID)
}

// Refresh exchanges a valid refresh token for a new pair
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*TokenResult, error) {
	claims, err := utils.ValidateToken(refreshToken, utils.TokenTypeRefresh, s.jwtSecret)
	if err != nil {
		s.logger.Warn("Refresh failed: invalid refresh token", zap.Error(err))
		return nil, ErrInvalidToken
	}
	client, err := s.clientRepo.FindByClientID(ctx, claims.ClientID)
	if err != nil {
		return nil, fmt.Errorf("could not verify client: %w", err)
	}
	if client == nil {
		s.logger.Warn("Refresh failed: client no longer exists", zap.String("client_id", claims.ClientID))
		return nil, ErrClientNotFound
	}
	return s.issuePair(claims.ClientID)
}

func (s *authServiceImpl) issuePair(clientID string) (*TokenResult, error) {
	access, _, err := utils.GenerateToken(clientID, utils.TokenTypeAccess, s.jwtSecret, s.accessTTL)
	if err != nil {
		s.logger.Error("Failed to generate access token", zap.String("client_id", clientID), zap.Error(err))
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	refresh, _, err := utils.GenerateToken(clientID, utils.TokenTypeRefresh, s.jwtSecret, s.refreshTTL)
	if err != nil {
		s.logger.Error("Failed to generate refresh token", zap.String("client_id", clientID), zap.Error(err))
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	s.logger.Info("Issued tokens", zap.String("client_id", clientID))
	return &TokenResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}
