package routes

import (
	"context"
	"database/sql"
	"time"

	"go-logrelay/internal/bootstrap"
	"go-logrelay/internal/config"
	mw "go-logrelay/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetupRoutes configures the collector routes.
func SetupRoutes(
	app *fiber.App,
	cfg *config.Config,
	logger *zap.Logger,
	components *bootstrap.AppComponents,
	sqliteDB *sql.DB, // Pass DB handles for health check
) {
	logger.Info("Setting up application routes...")

	// --- Public Routes ---
	app.Get("/health", func(c *fiber.Ctx) error {
		lg := mw.GetRequestFileLogger(c)
		healthStatus := fiber.Map{"status": "healthy", "timestamp": time.Now().UTC()}
		dbStatus := fiber.Map{}

		if sqliteDB != nil {
			if err := sqliteDB.PingContext(c.UserContext()); err == nil {
				dbStatus["sqlite"] = "connected"
			} else {
				dbStatus["sqlite"] = "disconnected"
				healthStatus["status"] = "degraded"
				lg.Warn("Health check: SQLite ping failed", zap.Error(err))
			}
		} else {
			dbStatus["sqlite"] = "uninitialized"
			healthStatus["status"] = "degraded"
		}

		if oracleDB := components.OracleDB(); oracleDB != nil {
			pingCtx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
			defer cancel()
			if err := oracleDB.PingContext(pingCtx); err == nil {
				dbStatus["oracle"] = "connected"
			} else {
				dbStatus["oracle"] = "disconnected"
				lg.Warn("Health check: Oracle ping failed", zap.Error(err))
			}
		} else {
			dbStatus["oracle"] = "disabled"
		}
		healthStatus["dependencies"] = dbStatus
		return c.Status(fiber.StatusOK).JSON(healthStatus)
	})

	// --- API v1 Routes ---
	api := app.Group("/api/v1")

	// POST /api/v1/auth/token, POST /api/v1/auth/refresh
	components.AuthHandler.SetupAuthRoutes(api)

	protected := api.Group("", mw.Protected(cfg.JWTSecret))
	// POST /api/v1/logging/frontend/logs, POST /api/v1/exceptions/frontend
	components.IngestHandler.SetupIngestRoutes(protected)
	// GET /api/v1/clients/me
	components.ClientHandler.SetupClientRoutes(protected)
}
