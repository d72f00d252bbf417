package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-logrelay/internal/models"
	"go-logrelay/internal/repositories"

	"go.uber.org/zap"
)

// IngestService stores entries received from clients.
type IngestService interface {
	Ingest(ctx context.Context, kind models.EntryKind, clientID string, entry models.Entry) (int64, error)
}

type ingestServiceImpl struct {
	logRepo repositories.LogRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewIngestService creates a new IngestService
func NewIngestService(logRepo repositories.LogRepository, logger *zap.Logger) IngestService {
	return &ingestServiceImpl{logRepo: logRepo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Ingest buffers one entry in SQLite and returns its row id.
func (s *ingestServiceImpl) Ingest(ctx context.Context, kind models.EntryKind, clientID string, entry models.Entry) (int64, error) {
	receivedAt := s.now()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = receivedAt
	}
	if entry.Source == "" {
		entry.Source = models.DefaultSource
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("failed to encode entry: %w", err)
	}

	id, err := s.logRepo.InsertSQLiteLog(ctx, models.LogEntry{
		ReceivedAt: receivedAt,
		Kind:       kind,
		ClientID:   clientID,
		Level:      string(entry.Level),
		Message:    entry.Message,
		TraceID:    entry.TraceID,
		Payload:    string(payload),
	})
	if err != nil {
		s.logger.Error("Failed to store received entry", zap.String("kind", string(kind)), zap.String("client_id", clientID), zap.Error(err))
		return 0, err
	}
	s.logger.Debug("Stored received entry", zap.Int64("id", id), zap.String("kind", string(kind)), zap.String("level", string(entry.Level)))
	return id, nil
}
