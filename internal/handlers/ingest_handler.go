package handlers

import (
	"encoding/json"
	"strings"
	"time"

	mw "go-logrelay/internal/middleware"
	"go-logrelay/internal/models"
	"go-logrelay/internal/pkg/validation"
	"go-logrelay/internal/services"
	"go-logrelay/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Ingest routes, relative to /api/v1.
const (
	LogsRoute       = "/logging/frontend/logs"
	ExceptionsRoute = "/exceptions/frontend"
)

// EntryRequest is one received entry after its keys were normalized to snake_case.
type EntryRequest struct {
	Source        string                 `json:"source" validate:"omitempty,max=50"`
	Level         string                 `json:"level" validate:"omitempty,oneof=debug info warn error fatal"`
	Message       string                 `json:"message" validate:"required,max=16000"`
	Module        string                 `json:"module" validate:"omitempty,max=200"`
	Function      string                 `json:"function" validate:"omitempty,max=200"`
	RequestPath   string                 `json:"request_path" validate:"omitempty,max=2048"`
	StatusCode    int                    `json:"status_code" validate:"omitempty,min=100,max=599"`
	DurationMs    int64                  `json:"duration_ms" validate:"min=0"`
	ExceptionType string                 `json:"exception_type" validate:"omitempty,max=200"`
	Stack         string                 `json:"stack" validate:"omitempty,max=32000"`
	TraceID       string                 `json:"trace_id" validate:"omitempty,max=64"`
	UserID        string                 `json:"user_id" validate:"omitempty,max=128"`
	Timestamp     *time.Time             `json:"timestamp"`
	Extra         map[string]interface{} `json:"extra"`
}

func (r *EntryRequest) toEntry(defaultLevel models.Level) models.Entry {
	level := defaultLevel
	if r.Level != "" {
		level = models.ParseLevel(r.Level)
	}
	e := models.Entry{
		Source:        r.Source,
		Level:         level,
		Message:       r.Message,
		Module:        r.Module,
		Function:      r.Function,
		RequestPath:   r.RequestPath,
		StatusCode:    r.StatusCode,
		DurationMs:    r.DurationMs,
		ExceptionType: r.ExceptionType,
		Stack:         r.Stack,
		TraceID:       r.TraceID,
		UserID:        r.UserID,
		Extra:         r.Extra,
	}
	if r.Timestamp != nil {
		e.Timestamp = r.Timestamp.UTC()
	}
	return e
}

// IngestHandler receives log and exception entries from authenticated clients
type IngestHandler struct {
	ingestService services.IngestService
}

// NewIngestHandler creates a new IngestHandler
func NewIngestHandler(ingestService services.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

// Logs handles POST /logging/frontend/logs
func (h *IngestHandler) Logs(c *fiber.Ctx) error {
	return h.ingest(c, models.KindLog, models.LevelInfo)
}

// Exceptions handles POST /exceptions/frontend
func (h *IngestHandler) Exceptions(c *fiber.Ctx) error {
	return h.ingest(c, models.KindException, models.LevelError)
}

func (h *IngestHandler) ingest(c *fiber.Ctx, kind models.EntryKind, defaultLevel models.Level) error {
	logger := mw.GetRequestFileLogger(c)
	clientID := mw.GetClientID(c)

	// Legacy clients send camelCase keys.
	body, err := utils.ToSnakeKeys(c.Body())
	if err != nil {
		logger.Warn("Received entry is not valid JSON", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "details": err.Error()})
	}
	var req EntryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Warn("Received entry has the wrong shape", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body", "details": err.Error()})
	}
	req.Level = strings.ToLower(strings.TrimSpace(req.Level))
	if errs := validation.ValidateStruct(&req); errs != nil {
		logger.Warn("Received entry failed validation", zap.String("kind", string(kind)), zap.Any("details", errs))
		return validation.RespondValidationErrors(c, errs)
	}

	id, err := h.ingestService.Ingest(c.UserContext(), kind, clientID, req.toEntry(defaultLevel))
	if err != nil {
		logger.Error("Failed to store received entry", zap.String("kind", string(kind)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store entry"})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted", "id": id})
}

// SetupIngestRoutes registers the ingest routes (protected)
func (h *IngestHandler) SetupIngestRoutes(router fiber.Router) {
	router.Post(LogsRoute, h.Logs)
	router.Post(ExceptionsRoute, h.Exceptions)
}
