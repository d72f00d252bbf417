package handlers

import (
	"errors"

	"go-logrelay/internal/middleware"
	"go-logrelay/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ClientHandler serves information about the calling client
type ClientHandler struct {
	clientService services.ClientService
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clientService services.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// Me handles GET /clients/me requests
func (h *ClientHandler) Me(c *fiber.Ctx) error {
	logger := middleware.GetRequestFileLogger(c)
	clientID := middleware.GetClientID(c)
	if clientID == "" {
		logger.Error("Client ID not found in locals after JWT validation")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized: client ID missing from token context",
		})
	}

	stats, err := h.clientService.Me(c.UserContext(), clientID)
	if err != nil {
		if errors.Is(err, services.ErrClientNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
		}
		logger.Error("Failed to get client stats", zap.String("client_id", clientID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve client"})
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

// SetupClientRoutes registers client routes (protected)
func (h *ClientHandler) SetupClientRoutes(router fiber.Router) {
	router.Get("/clients/me", h.Me)
}
