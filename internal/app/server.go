package app

import (
	"database/sql"
	"errors"
	"strings"

	"go-logrelay/internal/bootstrap"
	"go-logrelay/internal/config"
	"go-logrelay/internal/middleware"
	"go-logrelay/internal/routes"

	"github.com/gofiber/contrib/fiberzap/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// NewServer builds the collector's Fiber app with middleware and routes registered.
func NewServer(cfg *config.Config, logger *zap.Logger, components *bootstrap.AppComponents, sqliteDB *sql.DB) *fiber.App {
	appFiber := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		Prefork:      cfg.Prefork,
		BodyLimit:    cfg.MaxEntryBytes,
		ErrorHandler: errorHandler(cfg, logger),
	})

	appFiber.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.LogLevel == "debug",
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			middleware.GetRequestFileLogger(c).Error("Panic recovered", zap.Any("panic_value", e))
		},
	}))
	logger.Info("Configuring CORS", zap.String("origins", cfg.CORSAllowOrigins), zap.String("methods", cfg.CORSAllowMethods), zap.String("headers", cfg.CORSAllowHeaders))
	appFiber.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowMethods: cfg.CORSAllowMethods,
		AllowHeaders: cfg.CORSAllowHeaders,
	}))
	appFiber.Use(middleware.RequestLoggers(logger))
	if cfg.LogLevel == "debug" {
		appFiber.Use(middleware.RequestDebugLogger())
	}
	appFiber.Use(fiberzap.New(fiberzap.Config{
		Logger: logger,
		Fields: []string{"status", "method", "url", "ip", "latency", "error"},
		FieldsFunc: func(c *fiber.Ctx) []zap.Field {
			fields := []zap.Field{zap.String("log_type", "access")}
			if reqID := middleware.GetRequestID(c); reqID != "" {
				fields = append(fields, zap.String("request_id", reqID))
			}
			if clientID := middleware.GetClientID(c); clientID != "" {
				fields = append(fields, zap.String("client_id", clientID))
			}
			return fields
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health"
		},
	}))

	routes.SetupRoutes(appFiber, cfg, logger, components, sqliteDB)
	return appFiber
}

// errorHandler logs with the request logger, or with logger when the request was rejected
// before RequestLoggers ran (for example on the body limit).
func errorHandler(cfg *config.Config, logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		lg, ok := c.Locals(middleware.RequestFileLoggerKey).(*zap.Logger)
		if !ok || lg == nil {
			lg = logger
		}
		code := fiber.StatusInternalServerError
		message := "An unexpected error occurred"
		var e *fiber.Error
		if errors.As(err, &e) && e != nil {
			code = e.Code
			if code < fiber.StatusInternalServerError {
				message = e.Message
			}
		}
		fields := []zap.Field{
			zap.Int("status", code),
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.String("ip", c.IP()),
			zap.Error(err),
		}
		switch {
		case code == fiber.StatusNotFound:
			lg.Warn("Resource not found", fields...)
		case code < fiber.StatusInternalServerError:
			lg.Warn("Request rejected", fields...)
		default:
			lg.Error("Generic ErrorHandler", fields...)
		}
		resp := fiber.Map{"error": message}
		if cfg.AppEnv != "production" && err != nil && !strings.EqualFold(err.Error(), message) {
			resp["detail"] = err.Error()
		}
		return c.Status(code).JSON(resp)
	}
}
