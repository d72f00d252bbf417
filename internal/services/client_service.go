package services

import (
	"context"
	"fmt"

	"go-logrelay/internal/models"
	"go-logrelay/internal/repositories"

	"go.uber.org/zap"
)

// ClientService exposes information about authenticated clients
type ClientService interface {
	Me(ctx context.Context, clientID string) (*models.ClientStats, error)
}

type clientServiceImpl struct {
	clientRepo repositories.ClientRepository
	logRepo    repositories.LogRepository
	logger     *zap.Logger
}

// NewClientService creates a new ClientService
func NewClientService(clientRepo repositories.ClientRepository, logRepo repositories.LogRepository, logger *zap.Logger) ClientService {
	return &clientServiceImpl{clientRepo: clientRepo, logRepo: logRepo, logger: logger}
}

// Me returns the client's identity with the number of entries still buffered for it
func (s *clientServiceImpl) Me(ctx context.Context, clientID string) (*models.ClientStats, error) {
	client, err := s.clientRepo.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve client: %w", err)
	}
	if client == nil {
		s.logger.Warn("Stats requested for unknown client", zap.String("client_id", clientID))
		return nil, ErrClientNotFound
	}
	logs, exceptions, err := s.logRepo.CountByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("could not count entries: %w", err)
	}
	return &models.ClientStats{
		ClientID:       client.ClientID,
		Name:           client.Name,
		LogCount:       logs,
		ExceptionCount: exceptions,
	}, nil
}
