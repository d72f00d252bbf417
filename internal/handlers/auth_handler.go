package handlers

import (
	"errors"

	mw "go-logrelay/internal/middleware"
	"go-logrelay/internal/pkg/validation"
	"go-logrelay/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles token requests from API clients
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// TokenRequest defines the expected JSON body for token requests
type TokenRequest struct {
	ClientID     string `json:"client_id" validate:"required,max=100"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// RefreshRequest defines the expected JSON body for refresh requests
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Token handles POST /auth/token requests
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req TokenRequest
	logger := mw.GetRequestFileLogger(c)

	if !validation.ParseAndValidate(c, &req) {
		logger.Warn("Token request validation failed or bad request body")
		return nil // Response already sent by ParseAndValidate
	}

	pair, err := h.authService.IssueToken(c.UserContext(), req.ClientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			logger.Warn("Token request rejected", zap.String("client_id", req.ClientID))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		logger.Error("Internal server error during token request", zap.String("client_id", req.ClientID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Token request failed due to an internal error",
		})
	}
	return c.Status(fiber.StatusOK).JSON(pair)
}

// Refresh handles POST /auth/refresh requests
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	logger := mw.GetRequestFileLogger(c)

	if !validation.ParseAndValidate(c, &req) {
		logger.Warn("Refresh request validation failed or bad request body")
		return nil
	}

	pair, err := h.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidToken), errors.Is(err, services.ErrClientNotFound):
			logger.Warn("Refresh request rejected", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": services.ErrInvalidToken.Error()})
		default:
			logger.Error("Internal server error during refresh", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Refresh failed due to an internal error",
			})
		}
	}
	return c.Status(fiber.StatusOK).JSON(pair)
}

// SetupAuthRoutes registers authentication routes with the Fiber app
func (h *AuthHandler) SetupAuthRoutes(router fiber.Router) {
	authGroup := router.Group("/auth")
	authGroup.Post("/token", h.Token)
	authGroup.Post("/refresh", h.Refresh)
}
